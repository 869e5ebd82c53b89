// Package render produces the on-host artifacts for a managed service:
// the Gitea app.ini, the act_runner daemon config, and the systemd unit
// file. Rendering is a template fill over resolved key/value pairs; the
// artifact formats belong to the managed binaries and are otherwise
// opaque.
//
// Output is deterministic (sorted sections and keys) and writes are
// atomic with restrictive file modes, so a crash mid-write never leaves
// a half-rendered config behind.
package render
