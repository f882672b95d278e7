package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/marchline/extension/internal/grid"
	"github.com/marchline/extension/internal/playback"
	"github.com/marchline/extension/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost plays roster source, position source, move sink and
// permission source in one, like the host would.
type fakeHost struct {
	mu           sync.Mutex
	participants []core.Participant
	owners       map[core.ParticipantID]string
	moves        []core.MoveCommand
}

func newFakeHost() *fakeHost {
	return &fakeHost{owners: make(map[core.ParticipantID]string)}
}

func (h *fakeHost) add(id core.ParticipantID, x, y float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.participants = append(h.participants, core.Participant{
		ID:       id,
		Position: core.Position{X: x, Y: y},
	})
}

func (h *fakeHost) Roster() []core.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]core.Participant, len(h.participants))
	copy(out, h.participants)
	return out
}

func (h *fakeHost) PositionOf(id core.ParticipantID) (core.Position, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.participants {
		if p.ID == id {
			return p.Position, true
		}
	}
	return core.Position{}, false
}

func (h *fakeHost) Move(_ context.Context, cmd core.MoveCommand) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.moves = append(h.moves, cmd)
	for i := range h.participants {
		if h.participants[i].ID == cmd.ParticipantID {
			h.participants[i].Position = core.Position{X: cmd.X, Y: cmd.Y}
		}
	}
	return nil
}

func (h *fakeHost) IsExclusiveController(actorID string, id core.ParticipantID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.owners[id] == actorID
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu         sync.Mutex
	state      core.MarchingState
	loaded     bool
	saves      int
	pathPoints int
	runs       int
}

func (s *fakeStore) SaveMarchingState(state core.MarchingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.saves++
	return nil
}

func (s *fakeStore) LoadMarchingState() (core.MarchingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return core.MarchingState{}, nil
	}
	return s.state, nil
}

func (s *fakeStore) RecordPlaybackRun(core.PlaybackRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	return nil
}

func (s *fakeStore) RecordPathPoint(core.ParticipantID, core.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pathPoints++
	return nil
}

type fixture struct {
	session *Session
	host    *fakeHost
	store   *fakeStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	host := newFakeHost()
	store := &fakeStore{}
	s := New(Dependencies{
		Roster:      host,
		Positions:   host,
		MoveSink:    host,
		Permissions: host,
		Store:       store,
		Clock:       playback.RealClock{},
		Logger:      slog.New(slog.DiscardHandler),
		CellSize:    1,
		PlaybackConfig: playback.Config{
			TickInterval: time.Millisecond,
			Tolerance:    0.1,
		},
	})
	return &fixture{session: s, host: host, store: store}
}

func snap(t *testing.T, x, y float64) core.Position {
	t.Helper()
	p, err := grid.Snap(x, y, 1)
	require.NoError(t, err)
	return p
}

func TestSetEnabled_WithoutLeaderRejected(t *testing.T) {
	f := newFixture(t)

	err := f.session.SetEnabled(true)

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNoLeaderDesignated))
	assert.False(t, f.session.State().Enabled, "state must be unchanged on rejection")
}

func TestSetEnabled_ComputesMarchingOrder(t *testing.T) {
	f := newFixture(t)
	f.host.add("leader", 0, 0)
	f.host.add("near", 1, 0)
	f.host.add("far", 5, 0)

	require.NoError(t, f.session.SetLeader("leader"))
	require.NoError(t, f.session.SetEnabled(true))

	got := f.session.Assignments()
	require.Len(t, got, 2)
	assert.Equal(t, core.ParticipantID("near"), got[0].ParticipantID)
	assert.Equal(t, 0, got[0].Rank)
	assert.Equal(t, core.ParticipantID("far"), got[1].ParticipantID)
	for _, a := range got {
		assert.False(t, a.IsMoving, "nobody marches before the leader walks")
	}
}

func TestSetLeader_ChangeCascades(t *testing.T) {
	f := newFixture(t)
	f.host.add("a", 0, 0)
	f.host.add("b", 1, 0)

	require.NoError(t, f.session.SetLeader("a"))
	require.NoError(t, f.session.SetEnabled(true))

	// Record some path by moving the leader.
	require.NoError(t, f.session.HandleMovement(core.Movement{
		ParticipantID: "a", Old: snap(t, 0, 0), New: snap(t, 3, 0), IsGM: true,
	}))
	require.Greater(t, f.session.PathLen(), 0)

	require.NoError(t, f.session.SetLeader("b"))

	assert.Equal(t, 0, f.session.PathLen(), "leader change must clear the path")
	got := f.session.Assignments()
	require.Len(t, got, 1, "fresh order around the new leader")
	assert.Equal(t, core.ParticipantID("a"), got[0].ParticipantID)
}

func TestSetLeader_SameLeaderIsNoop(t *testing.T) {
	f := newFixture(t)
	f.host.add("a", 0, 0)

	require.NoError(t, f.session.SetLeader("a"))
	saves := f.store.saves
	require.NoError(t, f.session.SetLeader("a"))
	assert.Equal(t, saves, f.store.saves, "re-designating the same leader must not persist")
}

func TestSetEnabled_DisableClearsEverything(t *testing.T) {
	f := newFixture(t)
	f.host.add("leader", 0, 0)
	f.host.add("b", 1, 0)

	require.NoError(t, f.session.SetLeader("leader"))
	require.NoError(t, f.session.SetEnabled(true))
	require.NoError(t, f.session.HandleMovement(core.Movement{
		ParticipantID: "leader", Old: snap(t, 0, 0), New: snap(t, 2, 0), IsGM: true,
	}))

	require.NoError(t, f.session.SetEnabled(false))

	assert.Equal(t, 0, f.session.PathLen())
	assert.Empty(t, f.session.Assignments())
	assert.False(t, f.session.State().Enabled)
}

func TestCanManuallyMove(t *testing.T) {
	f := newFixture(t)
	f.host.add("leader", 0, 0)
	f.host.add("pc", 1, 0)
	f.host.add("npc", 2, 0)
	f.host.owners["pc"] = "alice"

	require.NoError(t, f.session.SetLeader("leader"))

	// Mode off: anyone may move anything.
	assert.True(t, f.session.CanManuallyMove("npc", "bob", false))

	require.NoError(t, f.session.SetEnabled(true))

	assert.True(t, f.session.CanManuallyMove("npc", "gm", true), "GM always allowed")
	assert.True(t, f.session.CanManuallyMove("leader", "bob", false), "leader token always allowed")
	assert.True(t, f.session.CanManuallyMove("pc", "alice", false), "exclusive controller allowed")
	assert.False(t, f.session.CanManuallyMove("pc", "bob", false))
	assert.False(t, f.session.CanManuallyMove("npc", "bob", false))
}

func TestHandleMovement_UnauthorizedManualMove(t *testing.T) {
	f := newFixture(t)
	f.host.add("leader", 0, 0)
	f.host.add("npc", 2, 0)

	require.NoError(t, f.session.SetLeader("leader"))
	require.NoError(t, f.session.SetEnabled(true))

	err := f.session.HandleMovement(core.Movement{
		ParticipantID: "npc",
		Old:           snap(t, 2, 0),
		New:           snap(t, 3, 0),
		ActorID:       "bob",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnauthorizedMove))
}

func TestHandleMovement_ManualFollowerMoveForcesRecompute(t *testing.T) {
	f := newFixture(t)
	f.host.add("leader", 0, 0)
	f.host.add("pc", 1, 0)
	f.host.add("npc", 2, 0)
	f.host.owners["pc"] = "alice"

	require.NoError(t, f.session.SetLeader("leader"))
	require.NoError(t, f.session.SetEnabled(true))
	require.NoError(t, f.session.HandleMovement(core.Movement{
		ParticipantID: "leader", Old: snap(t, 0, 0), New: snap(t, 2, 0), IsGM: true,
	}))
	require.Greater(t, f.session.PathLen(), 0)

	// Alice repositions her token far from the leader.
	f.host.mu.Lock()
	for i := range f.host.participants {
		if f.host.participants[i].ID == "pc" {
			f.host.participants[i].Position = core.Position{X: 50, Y: 0}
		}
	}
	f.host.mu.Unlock()

	require.NoError(t, f.session.HandleMovement(core.Movement{
		ParticipantID: "pc", Old: snap(t, 1, 0), New: snap(t, 50, 0), ActorID: "alice",
	}))

	assert.Equal(t, 0, f.session.PathLen(), "forced recompute clears the path")
	got := f.session.Assignments()
	require.Len(t, got, 2)
	assert.Equal(t, core.ParticipantID("npc"), got[0].ParticipantID,
		"repositioned follower sorts by its new distance")
	assert.Equal(t, core.ParticipantID("pc"), got[1].ParticipantID)
}

func TestHandleMovement_EngineMovesIgnored(t *testing.T) {
	f := newFixture(t)
	f.host.add("leader", 0, 0)
	f.host.add("b", 1, 0)

	require.NoError(t, f.session.SetLeader("leader"))
	require.NoError(t, f.session.SetEnabled(true))

	require.NoError(t, f.session.HandleMovement(core.Movement{
		ParticipantID:   "b",
		Old:             snap(t, 1, 0),
		New:             snap(t, 2, 0),
		EngineInitiated: true,
	}))

	assert.Equal(t, 0, f.session.PathLen(), "engine-driven moves never feed the recorder")
}

func TestHandleMovement_LeaderWalkEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.host.add("leader", 0, 0)
	f.host.add("first", 0, -1)
	f.host.add("second", 0, 1)

	require.NoError(t, f.session.SetLeader("leader"))
	require.NoError(t, f.session.SetEnabled(true))

	// Ties break by roster order.
	got := f.session.Assignments()
	require.Len(t, got, 2)
	assert.Equal(t, core.ParticipantID("first"), got[0].ParticipantID)
	assert.Equal(t, core.ParticipantID("second"), got[1].ParticipantID)

	require.NoError(t, f.session.HandleMovement(core.Movement{
		ParticipantID: "leader", Old: snap(t, 0, 0), New: snap(t, 3, 0), IsGM: true,
	}))

	// Path: (3,0),(2,0),(1,0),(0,0) newest-first.
	require.Equal(t, 4, f.session.PathLen())

	// Wait for playback to finish and trim to maxRank+1.
	require.Eventually(t, func() bool {
		return f.session.EngineState() == playback.StateIdle && f.session.PathLen() == 3
	}, 5*time.Second, 5*time.Millisecond)

	f.host.mu.Lock()
	defer f.host.mu.Unlock()
	var firstPos, secondPos, leaderPos core.Position
	for _, p := range f.host.participants {
		switch p.ID {
		case "first":
			firstPos = p.Position
		case "second":
			secondPos = p.Position
		case "leader":
			leaderPos = p.Position
		}
	}
	assert.NotEqual(t, firstPos, secondPos, "followers never share a cell")
	assert.NotEqual(t, firstPos, leaderPos, "followers stay off the leader's cell")
	// Rank 0 ends one cell behind the leader's destination.
	assert.InDelta(t, 2, firstPos.X, 0.01)
	assert.InDelta(t, 1, secondPos.X, 0.01)
}

func TestStateRestoredFromStore(t *testing.T) {
	host := newFakeHost()
	store := &fakeStore{state: core.MarchingState{Enabled: true, LeaderID: "a"}, loaded: true}
	s := New(Dependencies{
		Roster:      host,
		Positions:   host,
		MoveSink:    host,
		Permissions: host,
		Store:       store,
		Clock:       playback.RealClock{},
		Logger:      slog.New(slog.DiscardHandler),
		CellSize:    1,
	})

	got := s.State()
	assert.True(t, got.Enabled)
	assert.Equal(t, core.ParticipantID("a"), got.LeaderID)
}
