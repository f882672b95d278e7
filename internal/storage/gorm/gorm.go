// Package gormstorage implements the storage.Backend interface on top of
// a GORM database handle. Path points are queued and written in batches;
// everything else is written inline since it is low-volume.
package gormstorage

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marchline/extension/internal/logging"
	"github.com/marchline/extension/internal/model"
	"github.com/marchline/extension/internal/queue"
	"github.com/marchline/extension/pkg/core"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultFlushInterval = time.Second

// Dependencies holds everything the backend needs injected.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	FlushInterval time.Duration
}

// Backend persists marching sessions through GORM.
type Backend struct {
	deps Dependencies

	mu        sync.Mutex
	sessionID uint

	pathQueue *queue.Queue[model.PathPointRecord]
	stopChan  chan struct{}
	wg        sync.WaitGroup

	lastWriteDuration atomic.Int64 // nanoseconds
}

// New creates a backend. A nil DB is allowed for queue-only unit testing;
// flushes are then discarded.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{deps: deps}
}

// Init starts the background flush goroutine.
func (b *Backend) Init() error {
	b.pathQueue = queue.New[model.PathPointRecord]()
	b.stopChan = make(chan struct{})

	b.wg.Add(1)
	go b.flushLoop()
	return nil
}

// Close drains the queue and stops the flush goroutine.
func (b *Backend) Close() error {
	close(b.stopChan)
	b.wg.Wait()
	b.flush()
	return nil
}

// StartSession opens a new session row; subsequent records reference it.
func (b *Backend) StartSession(sceneID, sceneName string, cellSize float64) error {
	info := model.SessionInfo{
		SceneID:   sceneID,
		SceneName: sceneName,
		CellSize:  cellSize,
	}

	if b.deps.DB != nil {
		if err := b.deps.DB.Create(&info).Error; err != nil {
			return fmt.Errorf("failed to create session row: %w", err)
		}
	}

	b.mu.Lock()
	b.sessionID = info.ID
	b.mu.Unlock()

	b.pathQueue.Clear()
	return nil
}

// EndSession flushes any queued records for the closing session.
func (b *Backend) EndSession() error {
	b.flush()
	return nil
}

// SaveMarchingState appends a state snapshot. The newest row wins on restore.
func (b *Backend) SaveMarchingState(s core.MarchingState) error {
	if b.deps.DB == nil {
		return nil
	}

	rec := model.MarchingStateRecord{
		SessionID: b.currentSessionID(),
		Enabled:   s.Enabled,
		LeaderID:  string(s.LeaderID),
	}
	if err := b.deps.DB.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save marching state: %w", err)
	}
	return nil
}

// LoadMarchingState returns the most recent state snapshot, or the zero
// state when none has been recorded yet.
func (b *Backend) LoadMarchingState() (core.MarchingState, error) {
	if b.deps.DB == nil {
		return core.MarchingState{}, nil
	}

	var rec model.MarchingStateRecord
	res := b.deps.DB.Order("id DESC").Limit(1).Find(&rec)
	if res.Error != nil {
		return core.MarchingState{}, fmt.Errorf("failed to load marching state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.MarchingState{}, nil
	}
	return core.MarchingState{
		Enabled:  rec.Enabled,
		LeaderID: core.ParticipantID(rec.LeaderID),
	}, nil
}

// RecordPathPoint queues one leader path cell for the next batch write.
func (b *Backend) RecordPathPoint(leaderID core.ParticipantID, p core.Position) error {
	b.pathQueue.Push(model.PathPointRecord{
		Time:      time.Now(),
		SessionID: b.currentSessionID(),
		LeaderID:  string(leaderID),
		X:         p.X,
		Y:         p.Y,
		GridKey:   p.GridKey,
	})
	return nil
}

// RecordPlaybackRun writes one run summary inline.
func (b *Backend) RecordPlaybackRun(run core.PlaybackRun) error {
	if b.deps.DB == nil {
		return nil
	}

	assignments, err := json.Marshal(run.Assignments)
	if err != nil {
		return fmt.Errorf("failed to marshal assignments: %w", err)
	}

	rec := model.PlaybackRunRecord{
		SessionID:   b.currentSessionID(),
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Ticks:       run.Ticks,
		Moves:       run.Moves,
		Failures:    run.Failures,
		Completed:   run.Completed,
		Assignments: datatypes.JSON(assignments),
	}
	if err := b.deps.DB.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record playback run: %w", err)
	}
	return nil
}

// RecordWarning writes one warning inline.
func (b *Backend) RecordWarning(code, message, actorID string) error {
	if b.deps.DB == nil {
		return nil
	}

	rec := model.WarningRecord{
		SessionID: b.currentSessionID(),
		Code:      code,
		Message:   message,
		ActorID:   actorID,
	}
	if err := b.deps.DB.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record warning: %w", err)
	}
	return nil
}

// GetLastDBWriteDuration returns the duration of the last flush cycle.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWriteDuration.Load())
}

// QueuedPathPoints returns how many path points await the next flush.
func (b *Backend) QueuedPathPoints() int {
	if b.pathQueue == nil {
		return 0
	}
	return b.pathQueue.Len()
}

func (b *Backend) currentSessionID() uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

func (b *Backend) flushLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}

func (b *Backend) flush() {
	points := b.pathQueue.GetAndEmpty()
	if len(points) == 0 || b.deps.DB == nil {
		return
	}

	start := time.Now()
	if err := b.deps.DB.CreateInBatches(points, 500).Error; err != nil {
		if b.deps.LogManager != nil {
			b.deps.LogManager.WriteLog("gormstorage:flush",
				fmt.Sprintf("Error writing %d path points: %v", len(points), err), "ERROR")
		}
		// Requeue so a transient DB error does not lose audit data.
		b.pathQueue.Push(points...)
		return
	}
	b.lastWriteDuration.Store(int64(time.Since(start)))
}
