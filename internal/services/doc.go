// Package services is the HTTP client for the archive and backup tracking backend.
//
// A single [Client] implements [BackupAPI], [AuthAPI] and [CatalogAPI]. Every request carries a fresh X-Request-ID,
// is paced by an optional [rate.Limiter], and is attempted exactly once.
//
// # Wire types
//
// [BackupStatusItem], [UserItem] and [CatalogItem] mirror the JSON the backend speaks and convert to and from the
// models package. Stage states travel as nullable booleans: null is not applicable, false incomplete, true complete.
// The development server in package server encodes its responses with the same types.
//
// # Partial updates
//
// [CompletionRequest] is the body of PATCH /backup-status/{id}. Only changed stages are present. A stage moving to
// complete carries "<stage>_checker" set to the acting user; a stage moving back carries an explicit null checker.
//
// # Errors
//
// Non-2xx responses become an [*APIError] holding the status and the server's detail message. It unwraps to:
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrValidation] : 400, 422
//   - [shared.ErrConflictLost] : 409, 412
//   - [shared.ErrAuthFailed] : 401, 403
//   - [shared.ErrAPIRequest] : anything else
//
// Failures to reach the server at all are wrapped in [shared.ErrTransport].
//
// # Login
//
// Backends answer POST /auth/login in several shapes. [DecodeLoginResponse] recognises a user envelope, a token
// envelope, a flat user object and an explicit rejection; anything else is [shared.ErrUnrecognizedResponse].
// Token logins switch the client to bearer authentication through [Client.WithSession].
package services
