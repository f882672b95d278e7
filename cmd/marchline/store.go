package main

import (
	"context"
	"time"

	"github.com/marchline/extension/internal/influx"
	"github.com/marchline/extension/internal/scene"
	"github.com/marchline/extension/internal/storage"
	"github.com/marchline/extension/pkg/core"
)

// instrumentedStore layers InfluxDB telemetry over the storage backend.
// The session persists through it, so every recorded path cell and
// finished playback run also lands in the metrics buckets.
type instrumentedStore struct {
	storage.Backend
	influx *influx.Manager
	scene  *scene.Context
}

func newInstrumentedStore(backend storage.Backend, im *influx.Manager, sc *scene.Context) *instrumentedStore {
	return &instrumentedStore{Backend: backend, influx: im, scene: sc}
}

func (s *instrumentedStore) RecordPathPoint(leaderID core.ParticipantID, p core.Position) error {
	if s.influx != nil {
		point := influx.LeaderPathPoint(s.scene.SceneID(), leaderID, p, time.Now())
		if err := s.influx.WritePoint(context.Background(), influx.BucketMarchingData, point); err != nil {
			Logger.Debug("Failed to write path telemetry", "error", err)
		}
	}
	return s.Backend.RecordPathPoint(leaderID, p)
}

func (s *instrumentedStore) RecordPlaybackRun(run core.PlaybackRun) error {
	if s.influx != nil {
		point := influx.PlaybackRunPoint(s.scene.SceneID(), run)
		if err := s.influx.WritePoint(context.Background(), influx.BucketPlaybackPerformance, point); err != nil {
			Logger.Debug("Failed to write playback telemetry", "error", err)
		}
	}
	return s.Backend.RecordPlaybackRun(run)
}
