// Package streaming defines the JSON wire protocol between the host
// module and the marching extension.
package streaming

import (
	"encoding/json"

	"github.com/marchline/extension/pkg/core"
)

// Message type constants. Host -> extension unless noted.
const (
	TypeSceneInfo        = "scene_info"
	TypeRosterSync       = "roster_sync"
	TypeParticipantMoved = "participant_moved"
	TypeMarchEnable      = "march_enable"
	TypeMarchDisable     = "march_disable"
	TypeMarchLeader      = "march_leader"
	TypeMarchStatus      = "march_status"
	TypeMoveResult       = "move_result"

	// Extension -> host.
	TypeMoveCommand = "move_command"
	TypeWarning     = "warning"
	TypeStatus      = "status"

	TypeAck = "ack"
)

// Envelope wraps all messages sent over the WebSocket. The host stamps
// Actor and IsGM on messages a user's client originated; both stay
// empty on host-internal traffic.
type Envelope struct {
	Type    string          `json:"type"`
	Actor   string          `json:"actor,omitempty"`
	IsGM    bool            `json:"isGm,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the receiver's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SceneInfoPayload announces the active scene and its grid geometry.
type SceneInfoPayload struct {
	SceneID   string  `json:"sceneId"`
	SceneName string  `json:"sceneName"`
	CellSize  float64 `json:"cellSize"`
}

// RosterEntry is one follower-eligible token.
type RosterEntry struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	ControllerID string  `json:"controllerId,omitempty"`
}

// RosterSyncPayload replaces the extension's participant roster.
type RosterSyncPayload struct {
	Participants []RosterEntry `json:"participants"`
}

// ParticipantMovedPayload reports any token position change. Engine
// carries the engine-initiated marker back to us so playback output is
// not re-observed as user input.
type ParticipantMovedPayload struct {
	ID     string  `json:"id"`
	OldX   float64 `json:"oldX"`
	OldY   float64 `json:"oldY"`
	NewX   float64 `json:"newX"`
	NewY   float64 `json:"newY"`
	Actor  string  `json:"actor"`
	IsGM   bool    `json:"isGm"`
	Engine bool    `json:"engine"`
}

// MarchLeaderPayload designates (or clears) the leader.
type MarchLeaderPayload struct {
	LeaderID string `json:"leaderId"`
}

// MoveCommandPayload asks the host to relocate a token.
type MoveCommandPayload struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Engine bool    `json:"engine"`
}

// MoveResultPayload answers a MoveCommand.
type MoveResultPayload struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// WarningPayload carries a user-facing constraint message, e.g. a
// refused manual move naming the leader constraint.
type WarningPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ActorID string `json:"actorId,omitempty"`
}

// StatusPayload reports the extension's marching state to the host.
type StatusPayload struct {
	Enabled     bool   `json:"enabled"`
	LeaderID    string `json:"leaderId"`
	PathLength  int    `json:"pathLength"`
	EngineState string `json:"engineState"`
	Followers   int    `json:"followers"`
}

// ToMoveCommandPayload converts a core.MoveCommand for the wire.
func ToMoveCommandPayload(cmd core.MoveCommand) MoveCommandPayload {
	return MoveCommandPayload{
		ID:     string(cmd.ParticipantID),
		X:      cmd.X,
		Y:      cmd.Y,
		Engine: cmd.EngineInitiated,
	}
}
