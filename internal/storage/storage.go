// internal/storage/storage.go
package storage

import "github.com/marchline/extension/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(sceneID, sceneName string, cellSize float64) error
	EndSession() error

	// Marching state
	SaveMarchingState(s core.MarchingState) error
	LoadMarchingState() (core.MarchingState, error)

	// Audit recording
	RecordPathPoint(leaderID core.ParticipantID, p core.Position) error
	RecordPlaybackRun(run core.PlaybackRun) error
	RecordWarning(code, message, actorID string) error
}

// Exportable is an optional interface for storage backends that produce
// report files suitable for upload to a review frontend.
type Exportable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
