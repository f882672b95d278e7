package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marchline/extension/internal/dispatcher"
	"github.com/marchline/extension/pkg/streaming"
)

// runDemo feeds a fabricated scene through the dispatcher: a leader and
// three followers in column, a short leader walk, then status. Useful
// for exercising the full pipeline without a host connection.
func runDemo(d *dispatcher.Dispatcher) {
	Logger.Info("Running demo scenario")

	dispatchDemo(d, streaming.TypeSceneInfo, streaming.SceneInfoPayload{
		SceneID:   "demo-scene",
		SceneName: "Demo Crypt",
		CellSize:  5,
	})

	roster := streaming.RosterSyncPayload{Participants: []streaming.RosterEntry{
		{ID: "leader", Name: "Sergeant", X: 0, Y: 0},
		{ID: "f1", Name: "Follower One", X: -5, Y: 0},
		{ID: "f2", Name: "Follower Two", X: -10, Y: 0},
		{ID: "f3", Name: "Follower Three", X: -15, Y: 0},
	}}
	dispatchDemo(d, streaming.TypeRosterSync, roster)

	dispatchDemo(d, streaming.TypeMarchLeader, streaming.MarchLeaderPayload{LeaderID: "leader"})
	dispatchDemo(d, streaming.TypeMarchEnable, struct{}{})

	// Walk the leader east one cell at a time.
	x := 0.0
	for step := 0; step < 10; step++ {
		next := x + 5
		dispatchDemo(d, streaming.TypeParticipantMoved, streaming.ParticipantMovedPayload{
			ID:   "leader",
			OldX: x, OldY: 0,
			NewX: next, NewY: 0,
		})
		x = next
		time.Sleep(50 * time.Millisecond)
	}

	result, err := d.Dispatch(dispatcher.Event{
		Command:   streaming.TypeMarchStatus,
		Args:      []string{"{}"},
		Timestamp: time.Now(),
	})
	if err != nil {
		Logger.Error("Demo status failed", "error", err)
	} else {
		Logger.Info("Demo status", "status", fmt.Sprintf("%+v", result))
	}

	dispatchDemo(d, streaming.TypeMarchDisable, struct{}{})
	Logger.Info("Demo scenario complete")
}

func dispatchDemo(d *dispatcher.Dispatcher, command string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		Logger.Error("Demo payload marshal failed", "command", command, "error", err)
		return
	}
	if _, err := d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      []string{string(raw)},
		Timestamp: time.Now(),
	}); err != nil {
		Logger.Error("Demo dispatch failed", "command", command, "error", err)
	}
}
