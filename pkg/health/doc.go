/*
Package health probes the managed services beyond what systemd reports.

A unit can be "active" while its listener is wedged, so update-status
passes combine the systemd run state with a TCP probe of the Gitea
listen address (and optionally an HTTP probe of the root URL). Status
tracks consecutive results and only flips to unhealthy after a
configured number of failures, with a startup grace period for services
that take a moment to bind.
*/
package health
