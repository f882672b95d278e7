// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marchline/extension/pkg/core"
)

// SessionExport is the root JSON structure of an exported session report.
type SessionExport struct {
	SceneID    string           `json:"sceneId"`
	SceneName  string           `json:"sceneName"`
	CellSize   float64          `json:"cellSize"`
	StartedAt  time.Time        `json:"startedAt"`
	EndedAt    time.Time        `json:"endedAt"`
	FinalState marchStateJSON   `json:"finalState"`
	PathPoints []pathPointJSON  `json:"pathPoints"`
	Runs       []playbackJSON   `json:"playbackRuns"`
	Warnings   []Warning        `json:"warnings"`
}

type marchStateJSON struct {
	Enabled  bool   `json:"enabled"`
	LeaderID string `json:"leaderId"`
}

type pathPointJSON struct {
	Time     time.Time `json:"time"`
	LeaderID string    `json:"leaderId"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	GridKey  string    `json:"gridKey"`
}

type playbackJSON struct {
	StartedAt   time.Time                 `json:"startedAt"`
	FinishedAt  time.Time                 `json:"finishedAt"`
	Ticks       int                       `json:"ticks"`
	Moves       int                       `json:"moves"`
	Failures    int                       `json:"failures"`
	Completed   bool                      `json:"completed"`
	Assignments []core.FollowerAssignment `json:"assignments"`
}

// exportJSON writes the session data to a JSON file. Caller holds b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	sceneName := strings.ReplaceAll(b.sceneName, " ", "_")
	sceneName = strings.ReplaceAll(sceneName, ":", "_")
	timestamp := b.startedAt.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", sceneName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", sceneName, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		SceneID:   b.sceneID,
		SceneName: b.sceneName,
		CellSize:  b.cellSize,
		StartedAt: b.startedAt,
		EndedAt:   b.endedAt,
		FinalState: marchStateJSON{
			Enabled:  b.state.Enabled,
			LeaderID: string(b.state.LeaderID),
		},
		PathPoints: make([]pathPointJSON, 0, len(b.pathPoints)),
		Runs:       make([]playbackJSON, 0, len(b.runs)),
		Warnings:   b.warnings,
	}
	if export.Warnings == nil {
		export.Warnings = make([]Warning, 0)
	}

	for _, pp := range b.pathPoints {
		export.PathPoints = append(export.PathPoints, pathPointJSON{
			Time:     pp.Time,
			LeaderID: string(pp.LeaderID),
			X:        pp.Position.X,
			Y:        pp.Position.Y,
			GridKey:  pp.Position.GridKey,
		})
	}

	for _, run := range b.runs {
		export.Runs = append(export.Runs, playbackJSON{
			StartedAt:   run.StartedAt,
			FinishedAt:  run.FinishedAt,
			Ticks:       run.Ticks,
			Moves:       run.Moves,
			Failures:    run.Failures,
			Completed:   run.Completed,
			Assignments: run.Assignments,
		})
	}

	return export
}

func (b *Backend) writeJSON(path string, export SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

func (b *Backend) writeGzipJSON(path string, export SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()

	if err := json.NewEncoder(gz).Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// GetExportedFilePath returns the path of the last exported report.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last exported report.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return core.UploadMetadata{
		SceneID:   b.sceneID,
		SceneName: b.sceneName,
		EndedAt:   b.endedAt,
	}
}
