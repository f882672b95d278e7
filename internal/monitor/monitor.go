// Package monitor periodically reports extension health: the active
// scene, the marching state and storage write pressure. The report is
// written to a status file and, when available, to InfluxDB.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/marchline/extension/internal/influx"
	"github.com/marchline/extension/internal/logging"
	"github.com/marchline/extension/internal/scene"
	"github.com/marchline/extension/internal/session"
)

// WriteStats is the optional surface a storage backend exposes for
// write-pressure reporting.
type WriteStats interface {
	GetLastDBWriteDuration() time.Duration
	QueuedPathPoints() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Scene      *scene.Context
	Session    func() *session.Session
	Stats      WriteStats
	Influx     *influx.Manager
	StatusDir  string
	Interval   time.Duration
}

// Status is one sampled health report.
type Status struct {
	Time              time.Time `json:"time"`
	SceneID           string    `json:"sceneId"`
	SceneName         string    `json:"sceneName"`
	MarchingEnabled   bool      `json:"marchingEnabled"`
	LeaderID          string    `json:"leaderId"`
	PathLength        int       `json:"pathLength"`
	Followers         int       `json:"followers"`
	EngineState       string    `json:"engineState"`
	QueuedPathPoints  int       `json:"queuedPathPoints"`
	LastDBWriteMillis float64   `json:"lastDbWriteMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample collects the current health report.
func (s *Service) Sample() Status {
	status := Status{
		Time:      time.Now(),
		SceneID:   s.deps.Scene.SceneID(),
		SceneName: s.deps.Scene.SceneName(),
	}

	if sess := s.deps.Session(); sess != nil {
		state := sess.State()
		status.MarchingEnabled = state.Enabled
		status.LeaderID = string(state.LeaderID)
		status.PathLength = sess.PathLen()
		status.Followers = len(sess.Assignments())
		status.EngineState = sess.EngineState().String()
	}

	if s.deps.Stats != nil {
		status.QueuedPathPoints = s.deps.Stats.QueuedPathPoints()
		status.LastDBWriteMillis = float64(s.deps.Stats.GetLastDBWriteDuration()) / float64(time.Millisecond)
	}

	return status
}

// point converts a status sample to an InfluxDB point.
func point(status Status) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement("extension_status").
		AddTag("scene", status.SceneID).
		AddField("marchingEnabled", status.MarchingEnabled).
		AddField("pathLength", status.PathLength).
		AddField("followers", status.Followers).
		AddField("engineState", status.EngineState).
		AddField("queuedPathPoints", status.QueuedPathPoints).
		AddField("lastDbWriteMs", status.LastDBWriteMillis).
		SetTime(status.Time)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				status := s.Sample()

				if statusFile != nil {
					line, err := json.MarshalIndent(status, "", "  ")
					if err != nil {
						line = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(line, '\n'))
				}

				if s.deps.Influx != nil {
					err := s.deps.Influx.WritePoint(context.Background(),
						influx.BucketPlaybackPerformance, point(status))
					if err != nil {
						logger.Error("Error writing status to InfluxDB", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
