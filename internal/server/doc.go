// Package server is the development tracking backend and its HTTP plumbing.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation mounts routes below a prefix on an [http.ServeMux] using method patterns.
//
// # Handler Interface
//
// Handlers implement [Handler] and return their [Route] list, so each group of endpoints (backup status, auth,
// catalog) keeps its route definitions next to its implementation.
//
// # Backend
//
// [Backend] serves the REST surface the CLI talks to, backed by the SQLite repositories:
//
//	GET    /api/v1/backup-status?limit=N
//	POST   /api/v1/backup-status?user_id=U
//	GET    /api/v1/backup-status/{id}
//	PUT    /api/v1/backup-status/{id}?user_id=U
//	PATCH  /api/v1/backup-status/{id}?user_id=U
//	DELETE /api/v1/backup-status/{id}?user_id=U
//	POST   /api/v1/auth/login
//	GET    /api/v1/auth/users
//	GET    /api/v1/storage-catalogs?limit=N
//
// PATCH stamps the acting user as verifier of every stage it completes and answers 409 when expected_version
// no longer matches. Errors use the {"detail": "..."} envelope.
//
// Login issues an opaque bearer token. Requests may omit the token; when present it must be valid and belong to
// the user named by user_id.
package server
