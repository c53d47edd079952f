package separation

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrCycleTooShort is returned by [NewCycle] when fewer than two
	// participants are given. A block loop involves at least two people.
	ErrCycleTooShort = errors.New("cycle requires at least two participants")

	// ErrUnsavedParticipant is returned by [NewCycle] when a participant has
	// no stable ID. Identity comparisons need persisted participants.
	ErrUnsavedParticipant = errors.New("participant has no stable ID")

	// ErrRepeatedParticipant is returned by [NewCycle] when the same
	// participant appears more than once in the sequence. Cycles are simple
	// loops.
	ErrRepeatedParticipant = errors.New("participant repeated in cycle")
)

// Participant is one club member as the lottery sees them: a stable integer
// identity plus a display name. The zero ID marks a record that was never
// persisted; such participants cannot take part in cycles or graphs.
//
// Two participants are the same person if and only if their IDs are equal.
// The name carries no identity semantics and is used for rendering only.
type Participant struct {
	ID   int64
	Name string
}

// Saved reports whether the participant has a stable identity.
func (p Participant) Saved() bool { return p.ID != 0 }

// String renders the participant with name and identity, e.g. "Bert (#1)".
func (p Participant) String() string {
	return fmt.Sprintf("%s (#%d)", p.Name, p.ID)
}

// Cycle is an immutable loop of participants closed by block requests: each
// member asked to be separated from the next, and the last from the first.
// Cycles are report values produced by [Graph.IsolatedCycles] and are never
// mutated after construction.
//
// The zero value is not usable - use [NewCycle].
type Cycle struct {
	members []Participant
}

// NewCycle builds a cycle from members in traversal order. The slice is
// copied, so the caller may reuse or mutate it afterwards.
//
// Returns [ErrCycleTooShort] for fewer than two members,
// [ErrUnsavedParticipant] if any member lacks a stable ID, and
// [ErrRepeatedParticipant] if any member appears twice.
func NewCycle(members []Participant) (*Cycle, error) {
	if len(members) < 2 {
		return nil, ErrCycleTooShort
	}
	seen := make(map[int64]bool, len(members))
	for _, m := range members {
		if !m.Saved() {
			return nil, ErrUnsavedParticipant
		}
		if seen[m.ID] {
			return nil, ErrRepeatedParticipant
		}
		seen[m.ID] = true
	}
	return &Cycle{members: slices.Clone(members)}, nil
}

// Len returns the number of participants in the cycle.
func (c *Cycle) Len() int { return len(c.members) }

// Participants returns the members in construction order.
// The returned slice is a copy; modifying it does not affect the cycle.
func (c *Cycle) Participants() []Participant { return slices.Clone(c.members) }

// Contains reports whether p is a member of the cycle, compared by ID.
func (c *Cycle) Contains(p Participant) bool { return c.ContainsID(p.ID) }

// ContainsID reports whether any member has the given ID.
func (c *Cycle) ContainsID(id int64) bool {
	return slices.ContainsFunc(c.members, func(m Participant) bool { return m.ID == id })
}

// Equal reports whether other traverses the same loop in the same direction.
// Rotation does not matter: A→B→C equals B→C→A. Direction does: A→B→C and
// A→C→B close their loops through different requests and compare unequal.
// Equal is nil-safe and never true for a nil other.
func (c *Cycle) Equal(other *Cycle) bool {
	if other == nil || len(c.members) != len(other.members) {
		return false
	}
	head := slices.IndexFunc(other.members, func(m Participant) bool {
		return m.ID == c.members[0].ID
	})
	if head == -1 {
		return false
	}
	n := len(c.members)
	for i, m := range c.members {
		if m.ID != other.members[(head+i)%n].ID {
			return false
		}
	}
	return true
}

// String renders the members in order and repeats the first at the end to
// visually close the loop: "Bert (#1) --> Ernie (#2) --> Bert (#1)...".
func (c *Cycle) String() string {
	var b strings.Builder
	for _, m := range c.members {
		b.WriteString(m.String())
		b.WriteString(" --> ")
	}
	b.WriteString(c.members[0].String())
	b.WriteString("...")
	return b.String()
}
