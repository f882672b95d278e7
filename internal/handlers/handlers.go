// Package handlers routes host bridge messages into the marching
// session. One Manager per extension instance; the session it owns is
// replaced whenever the host announces a new scene.
package handlers

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marchline/extension/internal/cache"
	"github.com/marchline/extension/internal/dispatcher"
	"github.com/marchline/extension/internal/grid"
	"github.com/marchline/extension/internal/logging"
	"github.com/marchline/extension/internal/parser"
	"github.com/marchline/extension/internal/scene"
	"github.com/marchline/extension/internal/session"
	"github.com/marchline/extension/internal/storage"
	"github.com/marchline/extension/pkg/core"
	"github.com/marchline/extension/pkg/streaming"
)

// Warning codes sent back to the host.
const (
	WarnUnauthorizedMove = "unauthorized_move"
	WarnNoLeader         = "no_leader"
	WarnNotGM            = "not_gm"
)

// HostSender pushes extension-originated messages to the host.
type HostSender interface {
	SendWarning(p streaming.WarningPayload) error
	SendStatus(p streaming.StatusPayload) error
}

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Cache         *cache.ParticipantCache
	Scene         *scene.Context
	ParserService parser.Service
	LogManager    *logging.SlogManager
	Sender        HostSender
	Backend       storage.Backend

	// NewSession builds a fresh session for a scene's cell size. The
	// wiring layer injects the move sink and stores here.
	NewSession func(cellSize float64) *session.Session
}

// EventFrom converts a host envelope into a dispatcher event. The
// envelope's actor identity rides along so the GM gate on march
// control sees who issued the message.
func EventFrom(env streaming.Envelope, ts time.Time) dispatcher.Event {
	return dispatcher.Event{
		Command:   env.Type,
		Args:      []string{string(env.Payload)},
		ActorID:   env.Actor,
		IsGM:      env.IsGM,
		Timestamp: ts,
	}
}

// Manager owns the active session and processes dispatched events.
type Manager struct {
	deps Dependencies

	mu      sync.Mutex
	session *session.Session
}

// NewManager creates a new handler manager.
func NewManager(deps Dependencies) *Manager {
	return &Manager{deps: deps}
}

// RegisterHandlers registers all event handlers with the dispatcher.
// Movement reports are high-volume and buffered; everything else is
// control traffic and handled synchronously.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(streaming.TypeSceneInfo, m.handleSceneInfo, dispatcher.Logged())
	d.Register(streaming.TypeRosterSync, m.handleRosterSync, dispatcher.Logged())

	d.Register(streaming.TypeParticipantMoved, m.handleParticipantMoved,
		dispatcher.Buffered(1000), dispatcher.Logged())

	d.Register(streaming.TypeMarchEnable, m.handleMarchEnable, dispatcher.Logged())
	d.Register(streaming.TypeMarchDisable, m.handleMarchDisable, dispatcher.Logged())
	d.Register(streaming.TypeMarchLeader, m.handleMarchLeader, dispatcher.Logged())
	d.Register(streaming.TypeMarchStatus, m.handleMarchStatus)
}

// Session returns the active session, or nil before the first scene.
func (m *Manager) Session() *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Close ends the active session and the storage session.
func (m *Manager) Close() error {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.mu.Unlock()

	if sess != nil {
		if err := sess.Close(); err != nil {
			return err
		}
	}
	return m.deps.Backend.EndSession()
}

func (m *Manager) handleSceneInfo(e dispatcher.Event) (any, error) {
	info, err := m.deps.ParserService.ParseSceneInfo(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to handle scene info: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.Close()
		m.deps.Backend.EndSession()
	}

	m.deps.Scene.Set(info.SceneID, info.SceneName, info.CellSize)
	m.deps.Cache.Reset()

	if err := m.deps.Backend.StartSession(info.SceneID, info.SceneName, info.CellSize); err != nil {
		return nil, fmt.Errorf("failed to start storage session: %w", err)
	}

	m.session = m.deps.NewSession(info.CellSize)
	return nil, nil
}

func (m *Manager) handleRosterSync(e dispatcher.Event) (any, error) {
	roster, err := m.deps.ParserService.ParseRoster(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to handle roster sync: %w", err)
	}

	m.deps.Cache.Replace(roster.Participants)
	return nil, nil
}

func (m *Manager) handleParticipantMoved(e dispatcher.Event) (any, error) {
	mv, err := m.deps.ParserService.ParseMovement(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to handle movement: %w", err)
	}

	sess := m.Session()
	if sess == nil {
		return nil, fmt.Errorf("movement before scene info: %s", mv.ParticipantID)
	}

	cellSize := m.deps.Scene.CellSize()
	oldPos, err := grid.Snap(mv.OldX, mv.OldY, cellSize)
	if err != nil {
		return nil, fmt.Errorf("failed to handle movement: %w", err)
	}
	newPos, err := grid.Snap(mv.NewX, mv.NewY, cellSize)
	if err != nil {
		return nil, fmt.Errorf("failed to handle movement: %w", err)
	}

	// The cache mirrors the host's board regardless of marching mode.
	m.deps.Cache.SetPosition(mv.ParticipantID, newPos)

	err = sess.HandleMovement(core.Movement{
		ParticipantID:   mv.ParticipantID,
		Old:             oldPos,
		New:             newPos,
		ActorID:         mv.ActorID,
		IsGM:            mv.IsGM,
		EngineInitiated: mv.Engine,
		Time:            e.Timestamp,
	})
	if errors.Is(err, core.ErrUnauthorizedMove) {
		m.warn(WarnUnauthorizedMove,
			fmt.Sprintf("Only the leader may move while marching; %s stays in line", mv.ParticipantID),
			mv.ActorID)
		return nil, nil
	}
	return nil, err
}

func (m *Manager) handleMarchEnable(e dispatcher.Event) (any, error) {
	sess := m.Session()
	if sess == nil {
		return nil, fmt.Errorf("march enable before scene info")
	}
	if !m.actorMayControl(e) {
		return nil, nil
	}

	err := sess.SetEnabled(true)
	if errors.Is(err, core.ErrNoLeaderDesignated) {
		m.warn(WarnNoLeader, "Designate a leader before enabling marching mode", e.ActorID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.sendStatus(sess)
	return nil, nil
}

func (m *Manager) handleMarchDisable(e dispatcher.Event) (any, error) {
	sess := m.Session()
	if sess == nil {
		return nil, fmt.Errorf("march disable before scene info")
	}
	if !m.actorMayControl(e) {
		return nil, nil
	}

	if err := sess.SetEnabled(false); err != nil {
		return nil, err
	}

	m.sendStatus(sess)
	return nil, nil
}

func (m *Manager) handleMarchLeader(e dispatcher.Event) (any, error) {
	leader, err := m.deps.ParserService.ParseLeader(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to handle leader change: %w", err)
	}

	sess := m.Session()
	if sess == nil {
		return nil, fmt.Errorf("leader change before scene info")
	}
	if !m.actorMayControl(e) {
		return nil, nil
	}

	if err := sess.SetLeader(leader.LeaderID); err != nil {
		return nil, err
	}

	m.sendStatus(sess)
	return nil, nil
}

func (m *Manager) handleMarchStatus(e dispatcher.Event) (any, error) {
	sess := m.Session()
	if sess == nil {
		return nil, fmt.Errorf("status request before scene info")
	}

	p := m.statusPayload(sess)
	m.deps.Sender.SendStatus(p)
	return p, nil
}

// actorMayControl enforces that mode control messages come from a GM.
// The host omits the actor on trusted internal traffic.
func (m *Manager) actorMayControl(e dispatcher.Event) bool {
	if e.ActorID == "" || e.IsGM {
		return true
	}
	m.warn(WarnNotGM, "Only a GM may control marching mode", e.ActorID)
	return false
}

func (m *Manager) warn(code, message, actorID string) {
	if err := m.deps.Sender.SendWarning(streaming.WarningPayload{
		Code:    code,
		Message: message,
		ActorID: actorID,
	}); err != nil {
		m.deps.LogManager.WriteLog("handlers:warn",
			fmt.Sprintf("Failed to send warning %s: %v", code, err), "ERROR")
	}
	if err := m.deps.Backend.RecordWarning(code, message, actorID); err != nil {
		m.deps.LogManager.WriteLog("handlers:warn",
			fmt.Sprintf("Failed to record warning %s: %v", code, err), "ERROR")
	}
}

func (m *Manager) sendStatus(sess *session.Session) {
	if err := m.deps.Sender.SendStatus(m.statusPayload(sess)); err != nil {
		m.deps.LogManager.WriteLog("handlers:sendStatus",
			fmt.Sprintf("Failed to send status: %v", err), "ERROR")
	}
}

func (m *Manager) statusPayload(sess *session.Session) streaming.StatusPayload {
	state := sess.State()
	return streaming.StatusPayload{
		Enabled:     state.Enabled,
		LeaderID:    string(state.LeaderID),
		PathLength:  sess.PathLen(),
		EngineState: sess.EngineState().String(),
		Followers:   len(sess.Assignments()),
	}
}
