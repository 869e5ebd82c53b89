// Package systemd controls the managed units through the systemd D-Bus
// API: unit file installation, enable, start, stop, restart, and
// liveness queries. The D-Bus connection sits behind a small interface
// so tests can run against a fake bus.
package systemd
