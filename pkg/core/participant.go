// pkg/core/participant.go
package core

// ParticipantID identifies a token on the host's scene.
type ParticipantID string

// Position is a continuous scene position plus its canonical grid cell key.
// Two positions are in the same cell iff their GridKeys match.
// Treated as immutable once created.
type Position struct {
	X       float64
	Y       float64
	GridKey string
}

// Participant is a follower-eligible token as reported by the host.
type Participant struct {
	ID   ParticipantID
	Name string
	Position
	// ControllerID is the user that exclusively controls this token,
	// empty when the token is GM-owned or shared.
	ControllerID string
}

// FollowerAssignment gives one follower its place in the marching order.
// Rank 0 is closest to the leader at assignment time. The full assignment
// set is always recreated, never merged.
type FollowerAssignment struct {
	ParticipantID ParticipantID
	Rank          int
	IsMoving      bool
}

// MarchingState is the persisted mode record. The zero value is the
// default state (disabled, no leader).
type MarchingState struct {
	Enabled  bool
	LeaderID ParticipantID
}

// HasLeader reports whether a leader is designated.
func (s MarchingState) HasLeader() bool {
	return s.LeaderID != ""
}
