package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/marchline/extension/internal/api"
	"github.com/marchline/extension/internal/bridge"
	"github.com/marchline/extension/internal/cache"
	"github.com/marchline/extension/internal/config"
	"github.com/marchline/extension/internal/database"
	"github.com/marchline/extension/internal/dispatcher"
	"github.com/marchline/extension/internal/handlers"
	"github.com/marchline/extension/internal/influx"
	"github.com/marchline/extension/internal/logging"
	"github.com/marchline/extension/internal/monitor"
	intOtel "github.com/marchline/extension/internal/otel"
	"github.com/marchline/extension/internal/parser"
	"github.com/marchline/extension/internal/playback"
	"github.com/marchline/extension/internal/scene"
	"github.com/marchline/extension/internal/session"
	"github.com/marchline/extension/internal/storage"
	"github.com/marchline/extension/pkg/streaming"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"
)

// CurrentExtensionVersion and BuildDate can be set at build time via ldflags.
var (
	CurrentExtensionVersion string = "0.1.0"
	BuildDate               string = "unknown"

	ExtensionName string = "marchline"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()
)

func main() {
	configDir := flag.String("config", ".", "directory containing marchline.cfg.json")
	demoMode := flag.Bool("demo", false, "feed a fabricated scene and leader walk, then exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", ExtensionName, CurrentExtensionVersion, BuildDate)
		return
	}

	// Bootstrap logging to stderr until the log file is open.
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(os.Stderr, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
		}
	}

	logFilePath := logging.LogFilePath(logsDir, ExtensionName, SessionStartTime)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", logFilePath)
		logFile = os.Stderr
	}

	// OTel provider, if enabled, feeds the same file plus any OTLP endpoint.
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		otelCfg.LogWriter = logFile
		OTelProvider, err = intOtel.New(otelCfg)
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "file", logFilePath, "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", logFilePath)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(logFile, viper.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", logFilePath)

	zlog := zerolog.New(logFile).With().Timestamp().Logger()

	// Storage backend. Postgres and sqlite need a database handle first.
	storageCfg := config.GetStorageConfig()
	var db *gorm.DB
	if storageCfg.Type == "postgres" {
		dbManager := database.NewManager(zlog)
		if err := dbManager.Connect(); err != nil {
			Logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := dbManager.Setup(); err != nil {
			Logger.Error("Failed to migrate database schema", "error", err)
			os.Exit(1)
		}
		if dbManager.ShouldSaveLocal {
			// Postgres was unreachable; the manager fell back to an
			// in-memory sqlite handle, so record via the sqlite backend.
			storageCfg.Type = "sqlite"
			Logger.Warn("Postgres unreachable, recording to local SQLite instead")
		}
		db = dbManager.DB
	}
	if storageCfg.Type == "sqlite" && storageCfg.DumpPath == "" {
		storageCfg.DumpPath = filepath.Join(logsDir,
			fmt.Sprintf("%s_%s.db", ExtensionName, SessionStartTime.Format("20060102_150405")))
	}

	backend, err := storage.NewBackend(storageCfg, db, SlogManager)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		os.Exit(1)
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		os.Exit(1)
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	// InfluxDB telemetry, with a gzip line-protocol backup when offline.
	var influxManager *influx.Manager
	if viper.GetBool("influx.enabled") {
		backupPath := filepath.Join(logsDir,
			fmt.Sprintf("influx_backup_%s.gz", SessionStartTime.Format("20060102_150405")))
		influxManager = influx.NewManager(zlog, backupPath)
		if err := influxManager.Connect(); err != nil {
			Logger.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
			influxManager = nil
		}
	}

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		Logger.Error("Failed to create dispatcher", "error", err)
		os.Exit(1)
	}

	participants := cache.NewParticipantCache()
	sceneCtx := scene.NewContext(viper.GetFloat64("grid.cellSize"))
	parserService := parser.NewParser(Logger)

	hostBridge := bridge.New(Logger, func(env streaming.Envelope) {
		if _, err := eventDispatcher.Dispatch(handlers.EventFrom(env, time.Now())); err != nil {
			Logger.Debug("Dispatch failed", "command", env.Type, "error", err)
		}
	})

	store := newInstrumentedStore(backend, influxManager, sceneCtx)
	playbackCfg := playback.Config{
		TickInterval: time.Duration(viper.GetInt("playback.tickIntervalMs")) * time.Millisecond,
		Tolerance:    viper.GetFloat64("playback.positionTolerance"),
	}

	handlerManager := handlers.NewManager(handlers.Dependencies{
		Cache:         participants,
		Scene:         sceneCtx,
		ParserService: parserService,
		LogManager:    SlogManager,
		Sender:        hostBridge,
		Backend:       backend,
		NewSession: func(cellSize float64) *session.Session {
			return session.New(session.Dependencies{
				Roster:         participants,
				Positions:      participants,
				Permissions:    participants,
				MoveSink:       hostBridge,
				Store:          store,
				Clock:          playback.RealClock{},
				Logger:         Logger,
				CellSize:       cellSize,
				PlaybackConfig: playbackCfg,
			})
		},
	})
	handlerManager.RegisterHandlers(eventDispatcher)
	Logger.Info("Handlers registered with dispatcher")

	var stats monitor.WriteStats
	if ws, ok := backend.(monitor.WriteStats); ok {
		stats = ws
	}
	monitorService := monitor.NewService(monitor.Dependencies{
		LogManager: SlogManager,
		Scene:      sceneCtx,
		Session:    handlerManager.Session,
		Stats:      stats,
		Influx:     influxManager,
		StatusDir:  viper.GetString("monitor.statusDir"),
		Interval:   viper.GetDuration("monitor.interval"),
	})
	monitorService.Start()

	apiClient := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	go func() {
		if err := apiClient.Healthcheck(); err != nil {
			Logger.Info("Marchline frontend is offline")
		} else {
			Logger.Info("Marchline frontend is online")
		}
	}()

	if *demoMode {
		runDemo(eventDispatcher)
		shutdown(handlerManager, monitorService, hostBridge, influxManager, backend, apiClient)
		return
	}

	if err := hostBridge.Dial(viper.GetString("host.url"), viper.GetString("host.secret")); err != nil {
		Logger.Error("Failed to connect to host", "error", err, "url", viper.GetString("host.url"))
		os.Exit(1)
	}
	Logger.Info("Connected to host", "url", viper.GetString("host.url"))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	Logger.Info("Shutting down")

	shutdown(handlerManager, monitorService, hostBridge, influxManager, backend, apiClient)
}

func shutdown(
	handlerManager *handlers.Manager,
	monitorService *monitor.Service,
	hostBridge *bridge.Bridge,
	influxManager *influx.Manager,
	backend storage.Backend,
	apiClient *api.Client,
) {
	if err := handlerManager.Close(); err != nil {
		Logger.Error("Failed to close session", "error", err)
	}

	// Memory-backed recordings get pushed to the frontend when possible.
	if exp, ok := backend.(storage.Exportable); ok {
		if path := exp.GetExportedFilePath(); path != "" {
			if err := apiClient.Upload(path, exp.GetExportMetadata()); err != nil {
				Logger.Warn("Failed to upload session export", "error", err, "path", path)
			} else {
				Logger.Info("Session export uploaded", "path", path)
			}
		}
	}

	monitorService.Stop()

	if err := hostBridge.Close(); err != nil {
		Logger.Debug("Bridge close", "error", err)
	}
	if err := backend.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
	}
	if influxManager != nil {
		influxManager.Close()
	}
	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("OTel shutdown failed", "error", err)
		}
	}
}
