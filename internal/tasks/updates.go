package tasks

import (
	"fmt"

	"github.com/isaac-jh/ym-library/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchRecords Phase = iota
	FetchUsers
	SubmitChanges
)

func (p Phase) String() string {
	switch p {
	case FetchRecords:
		return "fetch_records"
	case FetchUsers:
		return "fetch_users"
	case SubmitChanges:
		return "submit_changes"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchingRecordsUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchRecords, Step: 0, Total: 1, Message: "Fetching backup records..."}
}

func fetchedRecordsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRecords,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %d backup records", count),
		Data:    count,
	}
}

func fetchingUsersUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchUsers, Step: 0, Total: 1, Message: "Fetching user directory..."}
}

func fetchedUsersUpdate(count int, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{Phase: FetchUsers, Step: 1, Total: 1, Message: fmt.Sprintf("User directory unavailable: %v", err)}
	}
	return ProgressUpdate{Phase: FetchUsers, Step: 1, Total: 1, Message: fmt.Sprintf("Loaded %d users", count), Data: count}
}

func submittingUpdate(step, total int, id models.RecordID) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SubmitChanges,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Submitting record %d...", step, total, id),
	}
}

func submittedUpdate(step, total int, res SubmitResult) ProgressUpdate {
	if res.Err != nil {
		return ProgressUpdate{
			Phase:   SubmitChanges,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ record %d: %v", step, total, res.Submission.ID, res.Err),
			Data:    res,
		}
	}
	return ProgressUpdate{
		Phase:   SubmitChanges,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.Record.Name),
		Data:    res,
	}
}
