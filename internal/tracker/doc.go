// Package tracker implements the change-tracking half of the backup-completion protocol.
//
// A [Tracker] keeps one [ChangeSet] per record: the stages the user has toggled, mapped to their proposed state.
// Proposals are always computed against the synced record (the last server-confirmed state), and a proposal equal
// to the synced value is removed instead of stored, so a ChangeSet never contains no-op entries.
//
// The UI shows [Tracker.Overlay] (synced values overridden by proposals) while the synced record stays untouched
// as the diff baseline. The submission protocol in package tasks sends [Tracker.PendingChangesFor] as a partial
// update and calls [Tracker.Reconcile] with the server's response.
//
// A [Store] may be attached so that pending changes survive between CLI invocations; the repositories package
// provides a SQLite implementation.
package tracker
