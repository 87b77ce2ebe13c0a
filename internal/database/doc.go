// Package database owns the SQLite file shared by the asset catalog, the
// conversion job queue and the capability cache.
//
// It opens the connection with WAL journaling and foreign keys, applies the
// embedded schema on first use, refuses databases created by a different
// schema version, and retries writes while SQLite reports SQLITE_BUSY.
// Schema changes bump schemaVersion in schema.go.
package database
