/*
Package log provides structured logging for hutch using zerolog.

The global logger is initialized once via Init and consumed everywhere
through component-scoped child loggers (WithComponent, WithService,
WithEvent). Output is JSON by default so controller-side log shipping
can parse it; console output is available for interactive use.

Secret values must never reach a log call site. Components that handle
credentials log the opaque secret handle or the desired-state
fingerprint instead; pkg/secrets is the only package that sees
plaintext, and it logs handles only.
*/
package log
