// Package storage defines the string-keyed backend contract used by the
// database layer and ships the adapters the CLI can select.
//
// Every adapter is batch-oriented: one Get call reads a whole key set, and
// one Set or Remove call persists a whole batch. Adapters must be safe for
// concurrent use because reads are issued from loader goroutines while the
// owning database flushes writes.
//
// Adapters:
//   - Memory: process-local map, the default for tests and ephemeral use.
//   - SQLite: single-table key/value store (WAL mode, one transaction per batch).
//   - Files: one file per key on an afero filesystem, via FromItems.
//   - Objects: one object per key in an S3-compatible bucket (MinIO).
//
// WithPrefix namespaces every key with the database name before it reaches
// the backend.
package storage
