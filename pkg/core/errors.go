// pkg/core/errors.go
package core

import "errors"

// Error taxonomy for the marching engine. Call sites wrap these with
// context via fmt.Errorf("...: %w", err) so callers can match with
// errors.Is.
var (
	// ErrInvalidPosition reports non-finite or malformed coordinates
	// reaching the grid discretizer.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrNoLeaderDesignated is returned when marching mode is enabled
	// without a designated leader.
	ErrNoLeaderDesignated = errors.New("no leader designated")

	// ErrUnauthorizedMove is returned when a manual move is refused
	// while marching mode is active.
	ErrUnauthorizedMove = errors.New("unauthorized move while marching")

	// ErrFollowerMoveFailed reports a single follower's move-sink call
	// failing during playback. Never fatal to the group run.
	ErrFollowerMoveFailed = errors.New("follower move failed")
)
