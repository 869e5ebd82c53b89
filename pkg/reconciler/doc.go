/*
Package reconciler is the event dispatcher at the top of the operator:
one delivered lifecycle event runs one reconciliation pass.

A pass is resolve, diff, apply, report. The driver resolves the desired
state of each managed service, hands it to the lifecycle controller
(which short-circuits on fingerprint equality), persists the returned
applied-state marker, and reports one aggregated status in the
controller's wire form: waiting, active, blocked:<reason>, or
error:<reason>. Per-service statuses aggregate worst-first, so one
failing service surfaces even when the other is healthy.

Relation events route through the relation adapter before the pass, and
a relation-broken event deletes the stored database credential and
re-applies configuration in the same pass, so stale credentials never
survive to a later event.

A precondition that is not yet met (missing binary resource, incomplete
relation data) reports waiting and performs no side effects. All other
failures are reported with their specific reason and retried on the
next delivered event; nothing retries internally.

Run starts a periodic loop that redelivers update-status, which doubles
as the liveness check for units that stopped unexpectedly.
*/
package reconciler
