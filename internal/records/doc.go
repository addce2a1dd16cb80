// Package records persists pipeline sessions and download records in SQLite.
//
// Sessions carry the state machine position of each upload along with the
// reason a session failed or was rejected. Every transition is appended to a
// history table so a session's path through the pipeline can be replayed.
// Download records map an output id to the storage key that holds the
// packaged archive; they are insert-only and an output id is never reused.
//
// Schema changes bump schemaVersion in schema.go; operators delete the
// database to adopt the new schema.
package records
