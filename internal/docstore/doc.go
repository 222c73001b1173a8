// Package docstore provides SQLite-backed storage for per-user progress
// documents.
//
// It stands in for a remote document database: every document lives in a
// collection, is addressed by a DocRef, and is only changed through
// CommitBatch, which applies a list of WriteOps atomically. Each successful
// commit is appended to a journal so the history of a document can be
// inspected.
//
// # Write operations
//
//   - OpMergeFields: merge a map into the document. Nested maps merge
//     recursively; the Delete sentinel removes a key.
//   - OpAddToSet: append values missing from an array field.
//   - OpRemoveFromSet: remove every occurrence of values from an array field.
//
// # Storage
//
// Document bodies and journal entries are stored as canonical JSON (sorted
// keys, NFC strings, integers only) so identical documents always produce
// identical bytes.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The store also implements catalog.Cache through the catalog_cache table.
package docstore
