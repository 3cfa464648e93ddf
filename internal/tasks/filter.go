package tasks

import (
	"strings"

	"github.com/isaac-jh/ym-library/internal/models"
)

// Filter narrows a record listing. The zero value matches everything.
type Filter struct {
	// EventName matches records of this event exactly. Records without an event name always pass.
	EventName string
	// Name matches records whose name contains it, ignoring case.
	Name string
	// States requires stages to be in the given states.
	States map[models.Stage]models.StageState
	// PendingOnly keeps only records with unsubmitted changes.
	PendingOnly bool
}

// Match reports whether the display form of a record passes f.
func (f Filter) Match(r models.BackupRecord) bool {
	if f.EventName != "" && r.EventName != "" && r.EventName != f.EventName {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(f.Name)) {
		return false
	}
	for stage, state := range f.States {
		if r.Stage(stage).State != state {
			return false
		}
	}
	return true
}

// Filtered returns the display form of the records that pass f, in board order.
func (b *Board) Filtered(f Filter) []models.BackupRecord {
	var out []models.BackupRecord
	for _, r := range b.Records() {
		if f.PendingOnly && !b.tracker.HasPending(r.ID) {
			continue
		}
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// EventNames lists the distinct event names on the board in first-seen order.
func (b *Board) EventNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range b.records {
		if r.EventName == "" || seen[r.EventName] {
			continue
		}
		seen[r.EventName] = true
		names = append(names, r.EventName)
	}
	return names
}
