// pkg/core/move.go
package core

import "time"

// MoveCommand asks the host to relocate a participant. EngineInitiated
// marks playback-driven moves so the movement handler does not re-observe
// them as fresh leader input.
type MoveCommand struct {
	ParticipantID   ParticipantID
	X               float64
	Y               float64
	EngineInitiated bool
	IssuedAt        time.Time
}

// MoveResult is the host's answer to a MoveCommand.
type MoveResult struct {
	ParticipantID ParticipantID
	OK            bool
	Reason        string
}

// PlaybackRun summarizes one playback run for telemetry and audit.
// Completed is false when the run was cancelled before every follower
// reached its slot.
type PlaybackRun struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Ticks       int
	Moves       int
	Failures    int
	Completed   bool
	Assignments []FollowerAssignment
}

// Movement is a host-reported position change for any participant.
type Movement struct {
	ParticipantID   ParticipantID
	Old             Position
	New             Position
	ActorID         string
	IsGM            bool
	EngineInitiated bool
	Time            time.Time
}
