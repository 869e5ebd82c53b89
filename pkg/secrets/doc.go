/*
Package secrets implements hutch's secret and resource store.

Sensitive values (database passwords, runner registration tokens) are
persisted AES-256-GCM encrypted in the unit state database and passed
around as opaque handles. Reveal is the single decryption call site;
nothing else in hutch ever sees plaintext, which keeps credentials out
of logs and status messages by construction.

Opaque binary resources (the gitea and act_runner executables) are
tracked by name. ResolveResource surfaces the controller-owned path
and sets the executable bit exactly once, on first resolution.
*/
package secrets
