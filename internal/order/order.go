// Package order computes the marching order: each follower's rank by
// ascending distance to the leader at the moment of calculation.
package order

import (
	"sort"

	"github.com/marchline/extension/internal/grid"
	"github.com/marchline/extension/pkg/core"
)

// Candidate is one follower-eligible participant.
type Candidate struct {
	ID       core.ParticipantID
	Position core.Position
}

// Assign ranks candidates by ascending Euclidean distance to the leader.
// The leader itself is excluded. Equal-distance candidates keep their
// input order, so repeated calls with identical input produce identical
// assignments. The result is a full replacement set; callers must not
// merge it with a previous one.
func Assign(leaderPos core.Position, leaderID core.ParticipantID, candidates []Candidate) []core.FollowerAssignment {
	type ranked struct {
		id   core.ParticipantID
		dist float64
	}

	followers := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == leaderID {
			continue
		}
		followers = append(followers, ranked{id: c.ID, dist: grid.Euclidean(c.Position, leaderPos)})
	}

	sort.SliceStable(followers, func(i, j int) bool {
		return followers[i].dist < followers[j].dist
	})

	assignments := make([]core.FollowerAssignment, len(followers))
	for i, f := range followers {
		assignments[i] = core.FollowerAssignment{ParticipantID: f.id, Rank: i}
	}
	return assignments
}
