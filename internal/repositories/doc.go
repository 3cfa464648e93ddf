// Package repositories implements SQLite persistence for the client's local state and the development backend.
//
// Local client state:
//   - [SessionRepository] : the single logged-in session
//   - [SnapshotRepository] : last server-confirmed records, in server order, stored in wire form
//   - [ChangeSetRepository] : pending stage changes, implementing [tracker.Store]
//
// Development backend:
//   - [BackupRepository] : backup records with partial stage updates, version checks and soft deletes
//   - [UserRepository] : user directory with bcrypt password hashes
//   - [CatalogRepository] : archive catalog entries
//
// Repositories that write several rows do so in one transaction. Schemas live in shared/sql and are applied by
// [shared.RunMigrations].
package repositories
