/*
Package config defines the fixed set of operator options.

Options arrive as a YAML file (the controller writes one per unit) and
are overlaid on documented defaults. Constrained options such as the
Gitea log level and the server protocol are validated against the same
allowlists Gitea itself enforces, so an invalid value
surfaces as a blocked status at resolve time instead of a crashed
service at start time.
*/
package config
