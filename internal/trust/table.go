package trust

import (
	"fmt"
	"maps"
	"slices"
)

// NodeID identifies a participant for the lifetime of a simulation run.
type NodeID int

func (id NodeID) String() string {
	return fmt.Sprintf("node-%d", int(id))
}

// Table maps peer identity to the trust scalar a node holds about it.
type Table map[NodeID]float64

// Get returns the stored score for id, or DefaultScore when id was never scored.
func (t Table) Get(id NodeID) float64 {
	if v, ok := t[id]; ok {
		return v
	}
	return DefaultScore
}

// Clone returns an independent copy of the table.
func (t Table) Clone() Table {
	if t == nil {
		return Table{}
	}
	return maps.Clone(t)
}

// Keys returns the scored ids in ascending order.
func (t Table) Keys() []NodeID {
	return slices.Sorted(maps.Keys(t))
}

// Mean returns the average score in the table, or DefaultScore when it is empty.
func (t Table) Mean() float64 {
	if len(t) == 0 {
		return DefaultScore
	}
	var sum float64
	for _, id := range t.Keys() {
		sum += t[id]
	}
	return sum / float64(len(t))
}
