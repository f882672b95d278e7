// Package session is the mode/leader controller for marching mode. One
// Session per connected host scene; all collaborators are injected so
// the controller carries no package-level state.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/marchline/extension/internal/order"
	"github.com/marchline/extension/internal/path"
	"github.com/marchline/extension/internal/playback"
	"github.com/marchline/extension/pkg/core"
)

// RosterSource returns the current follower-eligible participants, in
// a stable order. The order matters: distance ties in the marching
// order keep roster order.
type RosterSource interface {
	Roster() []core.Participant
}

// PermissionSource answers whether a user exclusively controls a
// participant. Exclusive controllers may reposition their own token
// while marching mode is active, so newcomers can join the line.
type PermissionSource interface {
	IsExclusiveController(actorID string, id core.ParticipantID) bool
}

// Store is the persistence surface the session needs.
type Store interface {
	SaveMarchingState(s core.MarchingState) error
	LoadMarchingState() (core.MarchingState, error)
	RecordPathPoint(leaderID core.ParticipantID, p core.Position) error
	RecordPlaybackRun(run core.PlaybackRun) error
}

// Dependencies holds everything a Session needs injected.
type Dependencies struct {
	Roster      RosterSource
	Positions   playback.PositionSource
	MoveSink    playback.MoveSink
	Permissions PermissionSource
	Store       Store
	Clock       playback.Clock
	Logger      *slog.Logger

	CellSize       float64
	PlaybackConfig playback.Config
}

// Session owns the marching state, the leader path recorder, the
// marching-order assignments and the playback engine.
type Session struct {
	mu          sync.Mutex
	state       core.MarchingState
	assignments []core.FollowerAssignment

	recorder *path.Recorder
	engine   *playback.Engine
	deps     Dependencies
	logger   *slog.Logger
}

// New creates a Session and restores persisted marching state. A load
// failure is not fatal: the session starts from the default state.
func New(deps Dependencies) *Session {
	if deps.CellSize <= 0 {
		deps.CellSize = 100
	}

	recorder := path.NewRecorder(deps.CellSize)
	s := &Session{
		recorder: recorder,
		deps:     deps,
		logger:   deps.Logger,
	}

	cfg := deps.PlaybackConfig
	if cfg.OnFinish == nil {
		cfg.OnFinish = func(run core.PlaybackRun) {
			// Audit only; a failed write never affects playback.
			if err := deps.Store.RecordPlaybackRun(run); err != nil {
				s.logger.Warn("failed to record playback run", "error", err)
			}
		}
	}
	s.engine = playback.New(recorder, deps.Positions, deps.MoveSink, deps.Clock,
		cfg, deps.Logger)

	if state, err := deps.Store.LoadMarchingState(); err != nil {
		s.logger.Warn("could not restore marching state, using defaults", "error", err)
	} else {
		s.state = state
	}
	return s
}

// State returns the current persisted-state record.
func (s *Session) State() core.MarchingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Assignments returns a copy of the current marching order, with
// IsMoving reflecting which followers the active run is still walking.
func (s *Session) Assignments() []core.FollowerAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.FollowerAssignment, len(s.assignments))
	copy(out, s.assignments)
	for i := range out {
		out[i].IsMoving = s.engine.Moving(out[i].ParticipantID)
	}
	return out
}

// PathLen returns the recorded leader-path length.
func (s *Session) PathLen() int {
	return s.recorder.Len()
}

// EngineState reports the playback engine's run state.
func (s *Session) EngineState() playback.State {
	return s.engine.State()
}

// SetLeader designates the leader. A change cascades: the recorded
// path, the assignments and any in-flight playback are discarded, and
// when the mode is enabled a fresh marching order is computed around
// the new leader. The new state is persisted.
func (s *Session) SetLeader(id core.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.state.LeaderID {
		return nil
	}

	s.engine.Cancel()
	s.recorder.Clear()
	s.assignments = nil
	s.state.LeaderID = id

	if s.state.Enabled && id != "" {
		s.recomputeLocked()
	}

	s.logger.Info("marching leader changed", "leader", id)
	return s.persistLocked()
}

// SetEnabled toggles marching mode. Enabling requires a designated
// leader; disabling clears the path and assignments and cancels any
// in-flight playback.
func (s *Session) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled {
		if !s.state.HasLeader() {
			return fmt.Errorf("cannot enable marching mode: %w", core.ErrNoLeaderDesignated)
		}
		s.state.Enabled = true
		s.recomputeLocked()
	} else {
		s.engine.Cancel()
		s.recorder.Clear()
		s.assignments = nil
		s.state.Enabled = false
	}

	s.logger.Info("marching mode toggled", "enabled", enabled)
	return s.persistLocked()
}

// CanManuallyMove reports whether actorID may manually reposition the
// participant. GMs always may, as may anyone when the mode is off.
// While marching, only the leader token and tokens their owner
// exclusively controls may be moved by hand.
func (s *Session) CanManuallyMove(id core.ParticipantID, actorID string, isGM bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canManuallyMoveLocked(id, actorID, isGM)
}

// HandleMovement routes a host movement event. Engine-initiated moves
// are dropped so playback output never feeds back in as leader input.
// Leader moves extend the path and trigger playback; permitted manual
// moves of anyone else force a full marching-order recompute.
func (s *Session) HandleMovement(mv core.Movement) error {
	if mv.EngineInitiated {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Enabled {
		return nil
	}

	if mv.ParticipantID == s.state.LeaderID {
		return s.leaderMovedLocked(mv)
	}

	if !s.canManuallyMoveLocked(mv.ParticipantID, mv.ActorID, mv.IsGM) {
		return fmt.Errorf("participant %s moved by %s: %w",
			mv.ParticipantID, mv.ActorID, core.ErrUnauthorizedMove)
	}

	// A repositioned follower changes the whole marching order.
	s.engine.Cancel()
	s.recorder.Clear()
	s.recomputeLocked()
	s.logger.Debug("marching order recomputed after manual move",
		"participant", mv.ParticipantID)
	return nil
}

func (s *Session) leaderMovedLocked(mv core.Movement) error {
	if err := s.recorder.RecordMove(mv.Old, mv.New); err != nil {
		return fmt.Errorf("leader move: %w", err)
	}

	if err := s.deps.Store.RecordPathPoint(s.state.LeaderID, mv.New); err != nil {
		// Audit only; never blocks playback.
		s.logger.Warn("failed to record path point", "error", err)
	}

	if len(s.assignments) == 0 {
		s.recomputeLocked()
	}
	s.engine.Trigger(s.assignments)
	return nil
}

// recomputeLocked rebuilds the full assignment set anchored on the
// leader's current position, replacing any previous set.
func (s *Session) recomputeLocked() {
	leaderPos, ok := s.deps.Positions.PositionOf(s.state.LeaderID)
	if !ok {
		s.logger.Warn("leader position unknown, keeping empty marching order",
			"leader", s.state.LeaderID)
		s.assignments = nil
		return
	}

	roster := s.deps.Roster.Roster()
	candidates := make([]order.Candidate, 0, len(roster))
	for _, p := range roster {
		candidates = append(candidates, order.Candidate{ID: p.ID, Position: p.Position})
	}
	s.assignments = order.Assign(leaderPos, s.state.LeaderID, candidates)
}

func (s *Session) canManuallyMoveLocked(id core.ParticipantID, actorID string, isGM bool) bool {
	if isGM || !s.state.Enabled {
		return true
	}
	if id == s.state.LeaderID {
		return true
	}
	return s.deps.Permissions.IsExclusiveController(actorID, id)
}

func (s *Session) persistLocked() error {
	if err := s.deps.Store.SaveMarchingState(s.state); err != nil {
		return fmt.Errorf("persist marching state: %w", err)
	}
	return nil
}

// Close cancels playback and persists the final state.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Cancel()
	return s.persistLocked()
}
