// internal/storage/memory/memory.go
package memory

import (
	"sync"
	"time"

	"github.com/marchline/extension/pkg/core"
)

// Config holds in-memory/JSON storage backend settings
type Config struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// PathPoint is one audited leader path cell.
type PathPoint struct {
	Time     time.Time
	LeaderID core.ParticipantID
	Position core.Position
}

// Warning is one user-facing constraint message kept for audit.
type Warning struct {
	Time    time.Time
	Code    string
	Message string
	ActorID string
}

// Backend stores session data in memory and exports to JSON on session end.
type Backend struct {
	cfg Config

	mu        sync.RWMutex
	sceneID   string
	sceneName string
	cellSize  float64
	startedAt time.Time
	endedAt   time.Time

	state      core.MarchingState
	pathPoints []PathPoint
	runs       []core.PlaybackRun
	warnings   []Warning

	lastExportPath string
}

// New creates a new memory backend
func New(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(sceneID, sceneName string, cellSize float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sceneID = sceneID
	b.sceneName = sceneName
	b.cellSize = cellSize
	b.startedAt = time.Now()

	// Reset all collections
	b.state = core.MarchingState{}
	b.pathPoints = nil
	b.runs = nil
	b.warnings = nil

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.endedAt = time.Now()
	return b.exportJSON()
}

// SaveMarchingState stores the newest state snapshot
func (b *Backend) SaveMarchingState(s core.MarchingState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
	return nil
}

// LoadMarchingState returns the stored state snapshot
func (b *Backend) LoadMarchingState() (core.MarchingState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state, nil
}

// RecordPathPoint appends one leader path cell
func (b *Backend) RecordPathPoint(leaderID core.ParticipantID, p core.Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pathPoints = append(b.pathPoints, PathPoint{
		Time:     time.Now(),
		LeaderID: leaderID,
		Position: p,
	})
	return nil
}

// RecordPlaybackRun appends one run summary
func (b *Backend) RecordPlaybackRun(run core.PlaybackRun) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs = append(b.runs, run)
	return nil
}

// RecordWarning appends one warning
func (b *Backend) RecordWarning(code, message, actorID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.warnings = append(b.warnings, Warning{
		Time:    time.Now(),
		Code:    code,
		Message: message,
		ActorID: actorID,
	})
	return nil
}
