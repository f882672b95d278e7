// pkg/core/upload.go
package core

import "time"

// UploadMetadata describes an exported session report for upload to a
// review frontend.
type UploadMetadata struct {
	SceneID   string
	SceneName string
	EndedAt   time.Time
}
