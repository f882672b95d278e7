package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/marchline/extension/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	return New(Config{OutputDir: t.TempDir()})
}

func TestStartSession_ResetsState(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Init())

	b.SaveMarchingState(core.MarchingState{Enabled: true, LeaderID: "a"})
	b.RecordPathPoint("a", core.Position{X: 1, Y: 2, GridKey: "1:2"})
	b.RecordWarning("unauthorized_move", "nope", "user-1")

	require.NoError(t, b.StartSession("scene-2", "Catacombs", 50))

	state, err := b.LoadMarchingState()
	require.NoError(t, err)
	assert.False(t, state.Enabled)
	assert.Empty(t, b.pathPoints)
	assert.Empty(t, b.warnings)
}

func TestSaveLoadMarchingState(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Init())

	want := core.MarchingState{Enabled: true, LeaderID: "leader-9"}
	require.NoError(t, b.SaveMarchingState(want))

	got, err := b.LoadMarchingState()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEndSession_WritesExport(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Init())
	require.NoError(t, b.StartSession("scene-1", "The Keep", 100))

	b.SaveMarchingState(core.MarchingState{Enabled: true, LeaderID: "a"})
	b.RecordPathPoint("a", core.Position{X: 100, Y: 0, GridKey: "100:0"})
	b.RecordPathPoint("a", core.Position{X: 200, Y: 0, GridKey: "200:0"})
	b.RecordPlaybackRun(core.PlaybackRun{Ticks: 3, Moves: 2, Completed: true})

	require.NoError(t, b.EndSession())

	path := b.GetExportedFilePath()
	require.NotEmpty(t, path)
	assert.Equal(t, ".json", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export SessionExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "scene-1", export.SceneID)
	assert.Equal(t, "The Keep", export.SceneName)
	assert.True(t, export.FinalState.Enabled)
	assert.Equal(t, "a", export.FinalState.LeaderID)
	assert.Len(t, export.PathPoints, 2)
	assert.Len(t, export.Runs, 1)

	meta := b.GetExportMetadata()
	assert.Equal(t, "scene-1", meta.SceneID)
	assert.False(t, meta.EndedAt.IsZero())
}

func TestEndSession_CompressedExport(t *testing.T) {
	dir := t.TempDir()
	b := New(Config{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.Init())
	require.NoError(t, b.StartSession("scene-1", "The Keep", 100))
	require.NoError(t, b.EndSession())

	path := b.GetExportedFilePath()
	assert.Equal(t, ".gz", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var export SessionExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, "The Keep", export.SceneName)
}
