/*
Package storage persists hutch's unit state in BoltDB.

Five buckets back the operator's explicit state: applied-state markers
(one per managed service, the idempotency fingerprints), the database
relation's adapter state and last published snapshot, encrypted
secrets keyed by opaque handle, resource attachment records, and the
statuses reported by the most recent reconciliation pass.

All writers are serialized by the controller's single-event-at-a-time
delivery guarantee; BoltDB's own file lock protects against a second
hutch process opening the same state directory.
*/
package storage
