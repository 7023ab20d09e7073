package components

import (
	"time"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

// StepEntry is one step row as the run view shows it.
type StepEntry struct {
	ID       string
	Title    string
	State    workflow.StepState
	Message  string
	Resumed  bool
	Started  time.Time
	Duration time.Duration
}

// StepList keeps step rows in plan order.
type StepList struct {
	entries []StepEntry
}

// NewStepList orders steps by order; ids missing from steps render as pending.
func NewStepList(order []string, steps map[string]StepEntry) StepList {
	entries := make([]StepEntry, 0, len(order))
	for _, id := range order {
		entry, ok := steps[id]
		if !ok {
			entry = StepEntry{ID: id, State: workflow.StepStatePending}
		}
		if entry.ID == "" {
			entry.ID = id
		}
		entries = append(entries, entry)
	}
	return StepList{entries: entries}
}

// Entries returns a copy of the ordered rows.
func (s StepList) Entries() []StepEntry {
	clone := make([]StepEntry, len(s.entries))
	copy(clone, s.entries)
	return clone
}

// Count returns how many rows are in state.
func (s StepList) Count(state workflow.StepState) int {
	n := 0
	for _, e := range s.entries {
		if e.State == state {
			n++
		}
	}
	return n
}
