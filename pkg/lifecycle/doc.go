// Package lifecycle converges a managed service onto a desired state:
// rendering its configuration, installing its unit definition, and
// driving its run state.
//
// Application is idempotent through the desired state's fingerprint.
// Re-applying an already-applied state performs only a liveness check,
// so redelivered events and periodic passes cause no restarts. Secret
// handles are resolved to plaintext only inside a pass, at the moment
// the config file is rendered.
package lifecycle
