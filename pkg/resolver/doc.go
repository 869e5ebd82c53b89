// Package resolver computes the desired state for each managed service
// from the operator options, the attached binary resource, and the
// database relation.
//
// Resolution is deterministic: the same options, binary path, relation
// state, and snapshot always produce a structurally identical
// DesiredState, so the lifecycle controller can compare fingerprints to
// decide whether anything needs to be applied. Sensitive relation
// fields are converted to opaque secret handles during resolution; the
// plaintext never appears in a DesiredState.
//
// When a precondition is unmet (no binary attached on a fresh unit, or
// a database relation that has not yet published every connection
// field) Resolve returns a WaitingError instead of a partial state.
package resolver
