/*
Package types defines the core data structures used throughout hutch.

The hutch domain model centers on one record: DesiredState, the target
configuration computed for a single reconciliation pass over a managed
service. Its SHA-256 Fingerprint, persisted as an AppliedStateMarker,
is the idempotency check that lets the lifecycle controller skip
re-applying configuration that has not changed.

Relation data published by the remote database unit arrives as a
RelationSnapshot; it is read-only to hutch and may be partial at any
point in the relation's life. Sensitive values are carried as Secret
records whose Data field is AES-256-GCM ciphertext; plaintext appears
only at the single injection call site in pkg/secrets.

Statuses reported back to the controller use the fixed wire forms
waiting, active, blocked:<reason> and error:<reason>; EventKind
enumerates the lifecycle events the dispatcher accepts.
*/
package types
