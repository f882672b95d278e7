// Package cache keeps the current participant roster in memory so the
// session can answer position and roster queries synchronously.
// Latency matters here: the playback engine reads positions on every
// cursor seed.
package cache

import (
	"sync"

	"github.com/marchline/extension/pkg/core"
)

// ParticipantCache is the in-memory roster, replaced wholesale on each
// roster_sync and patched by movement events. Insertion order is kept:
// it is the tie-break order for marching-order computation.
type ParticipantCache struct {
	mu           sync.Mutex
	participants map[core.ParticipantID]*core.Participant
	order        []core.ParticipantID
}

// NewParticipantCache creates an empty cache.
func NewParticipantCache() *ParticipantCache {
	return &ParticipantCache{
		participants: make(map[core.ParticipantID]*core.Participant),
	}
}

// Replace swaps the whole roster, keeping the given order.
func (c *ParticipantCache) Replace(roster []core.Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.participants = make(map[core.ParticipantID]*core.Participant, len(roster))
	c.order = make([]core.ParticipantID, 0, len(roster))
	for i := range roster {
		p := roster[i]
		if _, dup := c.participants[p.ID]; dup {
			continue
		}
		c.participants[p.ID] = &p
		c.order = append(c.order, p.ID)
	}
}

// SetPosition patches one participant's position. Unknown participants
// are ignored; they will arrive with the next roster sync.
func (c *ParticipantCache) SetPosition(id core.ParticipantID, pos core.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.participants[id]; ok {
		p.Position = pos
	}
}

// Get returns a participant by id.
func (c *ParticipantCache) Get(id core.ParticipantID) (core.Participant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.participants[id]; ok {
		return *p, true
	}
	return core.Participant{}, false
}

// Reset empties the cache.
func (c *ParticipantCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants = make(map[core.ParticipantID]*core.Participant)
	c.order = nil
}

// Len returns the roster size.
func (c *ParticipantCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Roster returns the participants in stable roster order. Implements
// session.RosterSource.
func (c *ParticipantCache) Roster() []core.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]core.Participant, 0, len(c.order))
	for _, id := range c.order {
		if p, ok := c.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// PositionOf implements playback.PositionSource.
func (c *ParticipantCache) PositionOf(id core.ParticipantID) (core.Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.participants[id]; ok {
		return p.Position, true
	}
	return core.Position{}, false
}

// IsExclusiveController implements session.PermissionSource: a user
// exclusively controls a token when the host reported them as its
// controller.
func (c *ParticipantCache) IsExclusiveController(actorID string, id core.ParticipantID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.participants[id]
	return ok && actorID != "" && p.ControllerID == actorID
}
