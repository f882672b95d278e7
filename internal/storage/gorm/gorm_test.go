package gormstorage

import (
	"testing"
	"time"

	"github.com/marchline/extension/internal/logging"
	"github.com/marchline/extension/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend() *Backend {
	return New(Dependencies{
		DB:            nil,
		LogManager:    logging.NewSlogManager(),
		FlushInterval: 10 * time.Millisecond,
	})
}

func TestNew(t *testing.T) {
	b := newTestBackend()
	require.NotNil(t, b)
}

func TestInitClose(t *testing.T) {
	b := newTestBackend()

	err := b.Init()
	require.NoError(t, err)
	require.NotNil(t, b.pathQueue)
	require.NotNil(t, b.stopChan)

	err = b.Close()
	require.NoError(t, err)
}

func TestRecordPathPoint_Queues(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	err := b.RecordPathPoint("leader-1", core.Position{X: 100, Y: 200, GridKey: "100:200"})
	require.NoError(t, err)
	assert.Equal(t, 1, b.QueuedPathPoints())
}

func TestStartSession_ResetsQueue(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	b.RecordPathPoint("leader-1", core.Position{X: 1, Y: 2, GridKey: "1:2"})
	require.NoError(t, b.StartSession("scene-1", "The Keep", 100))

	assert.Equal(t, 0, b.QueuedPathPoints())
}

func TestLoadMarchingState_NoDBReturnsDefaults(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	state, err := b.LoadMarchingState()
	require.NoError(t, err)
	assert.False(t, state.Enabled)
	assert.False(t, state.HasLeader())
}
