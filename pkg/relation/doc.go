// Package relation tracks the lifecycle of the external database
// relation across controller events.
//
// The adapter is a small persisted state machine over four states:
// no-relation, joined-incomplete, integrated, and broken. Joined and
// changed events carry the remote unit's connection snapshot; the
// adapter stores it and moves to integrated once every required field
// is present. A broken event discards the snapshot and enters the
// transient broken state, which Settle resolves to no-relation after
// the reconciliation pass that reverts the service to standalone
// configuration has run.
//
// State and snapshot persist through the unit state store because the
// controller delivers each event to a fresh process.
package relation
