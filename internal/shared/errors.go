package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed           = fmt.Errorf("authentication failed")
	ErrNotAuthenticated     = fmt.Errorf("not authenticated")
	ErrUnrecognizedResponse = fmt.Errorf("unrecognized response shape")

	// API and transport errors
	ErrAPIRequest   = fmt.Errorf("API request failed")
	ErrTransport    = fmt.Errorf("transport failure")
	ErrNotFound     = fmt.Errorf("not found")
	ErrConflictLost = fmt.Errorf("data changed on the server, please reload")

	// Tracking errors
	ErrValidation         = fmt.Errorf("validation failed")
	ErrEmptyChangeSet     = fmt.Errorf("no pending changes")
	ErrPendingChanges     = fmt.Errorf("record has unsubmitted stage changes")
	ErrEditing            = fmt.Errorf("record is being edited")
	ErrSubmissionInFlight = fmt.Errorf("submission already in progress")

	// Local state errors
	ErrStateLocked = fmt.Errorf("local state is locked by another process")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
