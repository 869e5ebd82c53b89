// Package action implements the operator-invoked register action: it
// runs the act_runner registration subcommand with a user-supplied
// token. A non-zero exit becomes an ActionExecutionError carrying the
// subcommand's stderr verbatim. Re-running with a fresh token is safe;
// re-running with a consumed token fails with act_runner's own error.
package action
