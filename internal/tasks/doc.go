// Package tasks runs one user's editing session over the backup records.
//
// # Board
//
// [Board] holds the records last confirmed by the server, in server order, together with a [tracker.Tracker]
// of pending stage changes. Everything shown to the user is the overlay of the two, see [Board.Records].
//
// # Submitting
//
// A submission is split in three so that interactive callers never block on the network:
//
//  1. [Board.PrepareSubmit] : builds the partial update for a record and marks it in flight
//  2. [Submission.Send] : performs the request, safe to run on another goroutine
//  3. [Board.FinishSubmit] : applies the server's answer and reconciles the pending changes
//
// [Board.Submit] chains the three for the CLI. [Board.SubmitAll] fans the sends of every pending record out to a
// rate limited worker pool.
//
// A failed submission keeps the record's pending changes and reports [SubmitNotice].
//
// # Editing
//
// [Board.BeginEdit] opens a record's fields for editing. A record cannot be edited while it has pending stage
// changes, and stages cannot be toggled while the record is being edited.
//
// # Progress Reporting
//
// Long-running operations take an optional channel of [ProgressUpdate]. Updates use select with default so a slow
// reader never stalls the operation.
package tasks
