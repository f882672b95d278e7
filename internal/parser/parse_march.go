package parser

import (
	"encoding/json"
	"fmt"

	"github.com/marchline/extension/internal/util"
	"github.com/marchline/extension/pkg/core"
	"github.com/marchline/extension/pkg/streaming"
)

// Movement is a parsed participant_moved payload.
type Movement struct {
	ParticipantID core.ParticipantID
	OldX, OldY    float64
	NewX, NewY    float64
	ActorID       string
	IsGM          bool
	Engine        bool
}

// Roster is a parsed roster_sync payload.
type Roster struct {
	Participants []core.Participant
}

// Leader is a parsed march_leader payload.
type Leader struct {
	LeaderID core.ParticipantID
}

// SceneInfo is a parsed scene_info payload.
type SceneInfo struct {
	SceneID   string
	SceneName string
	CellSize  float64
}

func payloadOf(args []string) (string, error) {
	if len(args) < 1 || args[0] == "" {
		return "", fmt.Errorf("empty payload")
	}
	return util.UnwrapPayload(args[0]), nil
}

// ParseMovement decodes a participant_moved payload.
func (p *Parser) ParseMovement(args []string) (Movement, error) {
	raw, err := payloadOf(args)
	if err != nil {
		return Movement{}, fmt.Errorf("movement: %w", err)
	}

	var msg streaming.ParticipantMovedPayload
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Movement{}, fmt.Errorf("movement payload: %w", err)
	}
	if msg.ID == "" {
		return Movement{}, fmt.Errorf("movement payload: missing participant id")
	}

	return Movement{
		ParticipantID: core.ParticipantID(msg.ID),
		OldX:          msg.OldX,
		OldY:          msg.OldY,
		NewX:          msg.NewX,
		NewY:          msg.NewY,
		ActorID:       msg.Actor,
		IsGM:          msg.IsGM,
		Engine:        msg.Engine,
	}, nil
}

// ParseRoster decodes a roster_sync payload. Entry order is preserved:
// it is the tie-break order for the marching-order calculation.
func (p *Parser) ParseRoster(args []string) (Roster, error) {
	raw, err := payloadOf(args)
	if err != nil {
		return Roster{}, fmt.Errorf("roster: %w", err)
	}

	var msg streaming.RosterSyncPayload
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Roster{}, fmt.Errorf("roster payload: %w", err)
	}

	roster := Roster{Participants: make([]core.Participant, 0, len(msg.Participants))}
	for i, e := range msg.Participants {
		if e.ID == "" {
			return Roster{}, fmt.Errorf("roster payload: entry %d missing id", i)
		}
		roster.Participants = append(roster.Participants, core.Participant{
			ID:           core.ParticipantID(e.ID),
			Name:         e.Name,
			Position:     core.Position{X: e.X, Y: e.Y},
			ControllerID: e.ControllerID,
		})
	}
	return roster, nil
}

// ParseLeader decodes a march_leader payload. An empty leader id
// clears the designation.
func (p *Parser) ParseLeader(args []string) (Leader, error) {
	raw, err := payloadOf(args)
	if err != nil {
		return Leader{}, fmt.Errorf("leader: %w", err)
	}

	var msg streaming.MarchLeaderPayload
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Leader{}, fmt.Errorf("leader payload: %w", err)
	}
	return Leader{LeaderID: core.ParticipantID(msg.LeaderID)}, nil
}

// ParseSceneInfo decodes a scene_info payload.
func (p *Parser) ParseSceneInfo(args []string) (SceneInfo, error) {
	raw, err := payloadOf(args)
	if err != nil {
		return SceneInfo{}, fmt.Errorf("scene info: %w", err)
	}

	var msg streaming.SceneInfoPayload
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return SceneInfo{}, fmt.Errorf("scene info payload: %w", err)
	}
	if msg.CellSize <= 0 {
		return SceneInfo{}, fmt.Errorf("scene info payload: cell size %v must be positive", msg.CellSize)
	}
	return SceneInfo{
		SceneID:   msg.SceneID,
		SceneName: msg.SceneName,
		CellSize:  msg.CellSize,
	}, nil
}
