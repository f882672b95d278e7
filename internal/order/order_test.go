package order

import (
	"testing"

	"github.com/marchline/extension/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(x, y float64) core.Position {
	return core.Position{X: x, Y: y}
}

func TestAssign_RanksByDistance(t *testing.T) {
	leader := pos(0, 0)
	candidates := []Candidate{
		{ID: "far", Position: pos(10, 0)},
		{ID: "near", Position: pos(1, 0)},
		{ID: "mid", Position: pos(5, 0)},
	}

	got := Assign(leader, "leader", candidates)

	require.Len(t, got, 3)
	assert.Equal(t, core.ParticipantID("near"), got[0].ParticipantID)
	assert.Equal(t, core.ParticipantID("mid"), got[1].ParticipantID)
	assert.Equal(t, core.ParticipantID("far"), got[2].ParticipantID)
	for i, a := range got {
		assert.Equal(t, i, a.Rank)
	}
}

func TestAssign_ExcludesLeader(t *testing.T) {
	candidates := []Candidate{
		{ID: "leader", Position: pos(0, 0)},
		{ID: "a", Position: pos(1, 1)},
	}

	got := Assign(pos(0, 0), "leader", candidates)

	require.Len(t, got, 1)
	assert.Equal(t, core.ParticipantID("a"), got[0].ParticipantID)
}

func TestAssign_TiesKeepInputOrder(t *testing.T) {
	leader := pos(0, 0)
	// Both at distance 1 from the leader.
	candidates := []Candidate{
		{ID: "first", Position: pos(0, -1)},
		{ID: "second", Position: pos(0, 1)},
	}

	got := Assign(leader, "leader", candidates)

	require.Len(t, got, 2)
	assert.Equal(t, core.ParticipantID("first"), got[0].ParticipantID)
	assert.Equal(t, core.ParticipantID("second"), got[1].ParticipantID)
}

func TestAssign_Deterministic(t *testing.T) {
	leader := pos(3, 3)
	candidates := []Candidate{
		{ID: "a", Position: pos(3, 4)},
		{ID: "b", Position: pos(4, 3)},
		{ID: "c", Position: pos(2, 3)},
		{ID: "d", Position: pos(3, 2)},
	}

	first := Assign(leader, "leader", candidates)
	second := Assign(leader, "leader", candidates)
	assert.Equal(t, first, second)
}

func TestAssign_EmptyCandidates(t *testing.T) {
	got := Assign(pos(0, 0), "leader", nil)
	assert.Empty(t, got)
}
