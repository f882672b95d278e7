// Package playback steps followers backward along the recorded leader
// path, one grid step per tick, in marching order. It is the state
// machine at the heart of marching mode: Idle -> Running -> Idle, one
// logical run per leader movement burst.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marchline/extension/pkg/core"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// State is the engine's run state.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Cursor tracks one follower's progress along the path during a run.
// CurrentIndex counts from 0 (newest path entry); the follower walks
// toward TargetIndex, derived from its assigned rank.
type Cursor struct {
	CurrentIndex int
	TargetIndex  int
	OnPath       bool
}

// Path is the read/trim surface the engine needs from the recorder.
type Path interface {
	Len() int
	At(i int) core.Position
	Trim(keepUpToIndex int)
}

// MoveSink relocates a participant on the host. Calls are issued
// concurrently within one tick and must be safe for that.
type MoveSink interface {
	Move(ctx context.Context, cmd core.MoveCommand) error
}

// PositionSource answers a participant's current position synchronously.
type PositionSource interface {
	PositionOf(id core.ParticipantID) (core.Position, bool)
}

// Config holds tunables for the engine.
type Config struct {
	TickInterval time.Duration
	// Tolerance is the per-axis slack when matching a follower's
	// position against path entries during cursor seeding.
	Tolerance float64
	// OnFinish, when set, receives a summary of every finished run.
	// Called on its own goroutine.
	OnFinish func(core.PlaybackRun)
}

// Engine orchestrates all followers of one marching session.
type Engine struct {
	mu        sync.Mutex
	state     State
	cursors   map[core.ParticipantID]*Cursor
	ranks     []core.FollowerAssignment
	timer     Timer
	wake      chan struct{}
	cancelled bool
	refresh   bool
	runStats  core.PlaybackRun

	path      Path
	positions PositionSource
	sink      MoveSink
	clock     Clock
	cfg       Config
	logger    *slog.Logger

	ticks        metric.Int64Counter
	moves        metric.Int64Counter
	moveFailures metric.Int64Counter
}

// New creates an idle engine.
func New(p Path, positions PositionSource, sink MoveSink, clock Clock, cfg Config, logger *slog.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1
	}

	e := &Engine{
		path:      p,
		positions: positions,
		sink:      sink,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}

	m := meter()
	e.ticks, _ = m.Int64Counter("playback.ticks",
		metric.WithDescription("Playback ticks executed"))
	e.moves, _ = m.Int64Counter("playback.follower.moves",
		metric.WithDescription("Follower grid steps issued"))
	e.moveFailures, _ = m.Int64Counter("playback.follower.move_failures",
		metric.WithDescription("Follower moves rejected by the host"))

	return e
}

// State returns the engine's current run state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Moving reports whether the follower still has path steps to walk in
// the active run. Always false while Idle.
func (e *Engine) Moving(id core.ParticipantID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return false
	}
	c, ok := e.cursors[id]
	return ok && c.CurrentIndex > c.TargetIndex
}

// Trigger starts a run, or refreshes the active one. A trigger while
// Running is absorbed: the pending tick timer is cancelled and cursors
// are reseeded at the next tick boundary, so a burst of leader
// waypoints never stacks duplicate playback loops.
func (e *Engine) Trigger(assignments []core.FollowerAssignment) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// The caller's set is authoritative. Empty means nobody marches,
	// not "keep the previous order".
	e.ranks = assignments

	if e.state == StateRunning {
		if len(e.ranks) == 0 {
			e.cancelled = true
			e.stopTimerLocked()
			e.signalLocked()
			return
		}
		e.refresh = true
		e.stopTimerLocked()
		e.signalLocked()
		return
	}

	if e.path.Len() < 2 || len(e.ranks) == 0 {
		return
	}

	e.state = StateRunning
	e.cancelled = false
	e.refresh = false
	e.wake = make(chan struct{}, 1)
	e.runStats = core.PlaybackRun{StartedAt: time.Now()}
	e.seedCursorsLocked()

	go e.run()
}

// Cancel aborts the active run: the scheduled tick is stopped through
// its handle (a flag alone would let one stale tick fire) and cursors
// are discarded.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return
	}
	e.cancelled = true
	e.stopTimerLocked()
	e.signalLocked()
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) signalLocked() {
	if e.wake == nil {
		return
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// seedCursorsLocked derives a fresh cursor per follower: scan the path
// newest-to-oldest for the first entry within tolerance of the
// follower's current position; no match puts the follower at the
// oldest entry, off-path.
func (e *Engine) seedCursorsLocked() {
	length := e.path.Len()
	e.cursors = make(map[core.ParticipantID]*Cursor, len(e.ranks))

	for _, a := range e.ranks {
		// Rank r settles r+1 steps behind the path head, so no follower
		// ever ends on the leader's own cell.
		cur := &Cursor{CurrentIndex: length - 1, TargetIndex: a.Rank + 1}
		if pos, ok := e.positions.PositionOf(a.ParticipantID); ok {
			for i := 0; i < length; i++ {
				entry := e.path.At(i)
				if abs(entry.X-pos.X) <= e.cfg.Tolerance && abs(entry.Y-pos.Y) <= e.cfg.Tolerance {
					cur.CurrentIndex = i
					cur.OnPath = true
					break
				}
			}
		}
		e.cursors[a.ParticipantID] = cur
	}
}

// run is the tick loop. Ticks execute strictly sequentially: all moves
// of one tick settle before the next timer is armed.
func (e *Engine) run() {
	for {
		e.mu.Lock()
		if e.cancelled {
			e.finishLocked(false)
			e.mu.Unlock()
			return
		}
		if e.refresh {
			e.refresh = false
			e.seedCursorsLocked()
		}

		if e.arrivedLocked() {
			e.finishLocked(true)
			e.mu.Unlock()
			return
		}

		movers := e.selectMoversLocked()
		e.runStats.Ticks++
		e.mu.Unlock()

		e.ticks.Add(context.Background(), 1)
		e.stepAll(movers)

		e.mu.Lock()
		if e.cancelled || e.refresh {
			// Skip arming; the loop head handles the new state.
			e.mu.Unlock()
			continue
		}
		timer := e.clock.NewTimer(e.cfg.TickInterval)
		e.timer = timer
		wake := e.wake
		e.mu.Unlock()

		select {
		case <-timer.C():
		case <-wake:
		}
	}
}

// finishLocked transitions back to Idle. On normal termination the
// path is trimmed to the deepest target index; every cursor has been
// confirmed at or past its target, so no follower still needs the
// discarded history.
func (e *Engine) finishLocked(trim bool) {
	if trim && e.path.Len() > 0 {
		maxTarget := 0
		for _, c := range e.cursors {
			if c.TargetIndex > maxTarget {
				maxTarget = c.TargetIndex
			}
		}
		if maxTarget < e.path.Len() {
			e.path.Trim(maxTarget)
		}
	}

	e.cursors = nil
	e.timer = nil
	e.state = StateIdle

	if e.cfg.OnFinish != nil {
		run := e.runStats
		run.FinishedAt = time.Now()
		run.Completed = trim
		run.Assignments = make([]core.FollowerAssignment, len(e.ranks))
		copy(run.Assignments, e.ranks)
		go e.cfg.OnFinish(run)
	}
	e.logger.Debug("playback run finished", "trimmed", trim)
}

func (e *Engine) arrivedLocked() bool {
	for _, c := range e.cursors {
		if c.CurrentIndex > c.TargetIndex {
			return false
		}
	}
	return true
}

type mover struct {
	id     core.ParticipantID
	cursor *Cursor
	target core.Position
}

// selectMoversLocked picks this tick's movers in ascending rank order.
// While any follower is still off the path, a follower may only move
// once every lower rank has arrived or joined the path; that is what
// forms the line instead of everyone jumping on at once.
func (e *Engine) selectMoversLocked() []mover {
	anyOffPath := false
	for _, c := range e.cursors {
		if !c.OnPath {
			anyOffPath = true
			break
		}
	}

	var movers []mover
	for _, a := range e.ranks {
		cur, ok := e.cursors[a.ParticipantID]
		if !ok || cur.CurrentIndex <= cur.TargetIndex {
			continue
		}

		if anyOffPath && !e.lowerRanksSettledLocked(a.Rank) {
			continue
		}

		movers = append(movers, mover{
			id:     a.ParticipantID,
			cursor: cur,
			target: e.path.At(cur.CurrentIndex - 1),
		})
	}
	return movers
}

func (e *Engine) lowerRanksSettledLocked(rank int) bool {
	for _, a := range e.ranks {
		if a.Rank >= rank {
			continue
		}
		c, ok := e.cursors[a.ParticipantID]
		if !ok {
			continue
		}
		if c.CurrentIndex > c.TargetIndex && !c.OnPath {
			return false
		}
	}
	return true
}

// stepAll issues this tick's moves concurrently and waits for all of
// them to settle. A failed move leaves that follower's cursor in place
// for a retry next tick; the rest of the group keeps marching.
func (e *Engine) stepAll(movers []mover) {
	var wg sync.WaitGroup
	results := make([]error, len(movers))

	for i, m := range movers {
		wg.Add(1)
		go func(i int, m mover) {
			defer wg.Done()
			results[i] = e.sink.Move(context.Background(), core.MoveCommand{
				ParticipantID:   m.id,
				X:               m.target.X,
				Y:               m.target.Y,
				EngineInitiated: true,
				IssuedAt:        time.Now(),
			})
		}(i, m)
	}
	wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, m := range movers {
		if results[i] != nil {
			e.moveFailures.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("participant", string(m.id))))
			e.logger.Warn("follower move rejected, retrying next tick",
				"participant", m.id, "error", results[i])
			e.runStats.Failures++
			continue
		}
		// Cursor map may have been dropped by a concurrent Cancel.
		cur, ok := e.cursors[m.id]
		if !ok || cur != m.cursor {
			continue
		}
		cur.CurrentIndex--
		if cur.CurrentIndex < e.path.Len()-1 {
			cur.OnPath = true
		}
		e.runStats.Moves++
		e.moves.Add(context.Background(), 1)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
