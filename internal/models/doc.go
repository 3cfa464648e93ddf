// Package models defines the domain types shared by the tracking client, the local state store and the development backend.
//
// # Stage Status
//
// Each backup record tracks four pipeline stages ([StageCam], [StageMaster], [StageClean], [StageFinalProduct]).
// A stage is in one of three states:
//   - [NotApplicable] : excluded from tracking when the record was created; never editable
//   - [Incomplete] : tracked, not yet verified
//   - [Complete] : verified; [StageStatus.VerifiedBy] names the verifying user
//
// VerifiedBy is present if and only if the state is Complete. [StageStatus.Toggle] and
// [StageStatus.Transition] keep that invariant; callers never set a verifier directly.
//
// # Records
//
// [BackupRecord] is the last server-confirmed ("synced") state of one production item.
// [BackupDraft] carries the editable fields for create and full update.
//
// # Session
//
// [Session] is the acting identity. It is passed explicitly to every operation that needs a verifier or an
// authorized caller, and is persisted by the repositories package between CLI invocations.
package models
