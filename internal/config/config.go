package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/marchline/extension/internal/otel"
	"github.com/marchline/extension/internal/storage"
	"github.com/marchline/extension/internal/storage/memory"
)

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./marchlogs")

	viper.SetDefault("host.url", "ws://localhost:30001/extension")
	viper.SetDefault("host.secret", "")

	viper.SetDefault("grid.cellSize", 1.0)

	viper.SetDefault("playback.tickIntervalMs", 100)
	viper.SetDefault("playback.positionTolerance", 0.25)

	viper.SetDefault("api.serverUrl", "http://localhost:5000/api")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "marchline")

	viper.SetDefault("influx.enabled", true)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "marchline-metrics")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")

	viper.SetDefault("monitor.statusDir", ".")
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "marchline")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("marchline.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 returns a float64 config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStorageConfig assembles the storage backend configuration.
func GetStorageConfig() storage.Config {
	return storage.Config{
		Type: viper.GetString("storage.type"),
		Memory: memory.Config{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
	}
}

// GetOTelConfig assembles the OpenTelemetry provider configuration.
// The log writer is supplied by the caller once log files are open.
func GetOTelConfig() otel.Config {
	return otel.Config{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
