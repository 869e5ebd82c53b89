package lifecycle

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/render"
	"github.com/cuemby/hutch/pkg/secrets"
	"github.com/cuemby/hutch/pkg/types"
)

// UnitManager is the init-system surface the controller drives.
// *systemd.Manager satisfies it; tests substitute a fake.
type UnitManager interface {
	Install(ctx context.Context, unit string, content []byte) error
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	Running(ctx context.Context, unit string) (bool, error)
}

// Target binds a managed service descriptor to the renderer that
// produces its configuration file from resolved values.
type Target struct {
	Service types.ManagedService
	Render  func(values map[string]string) ([]byte, error)
}

// Controller converges one managed service onto a desired state. It is
// the only writer of config files, unit files, and unit run state.
type Controller struct {
	units   UnitManager
	secrets *secrets.Store
}

// NewController returns a Controller over the given unit manager and
// secret store.
func NewController(units UnitManager, sec *secrets.Store) *Controller {
	return &Controller{units: units, secrets: sec}
}

// Apply converges the target onto desired and returns the marker to
// persist.
//
// When the desired fingerprint matches lastApplied, only a liveness
// check runs: an enabled unit that the host reports stopped is
// restarted, and nothing else is touched.
//
// Otherwise the steps run in order: render the config file, install the
// unit definition if the binary changed, then start or stop the unit.
// A render or install failure aborts the pass and returns lastApplied
// unchanged so the next event retries from scratch. A start failure
// returns the NEW marker together with the error: the configuration on
// disk is valid, and the next pass's liveness check retries the start.
func (c *Controller) Apply(ctx context.Context, target Target, desired *types.DesiredState, lastApplied *types.AppliedStateMarker) (*types.AppliedStateMarker, error) {
	svc := target.Service
	fp := desired.Fingerprint()
	logger := log.WithService(svc.Name)

	if !lastApplied.IsZero() && lastApplied.Fingerprint == fp {
		logger.Debug().Str("fingerprint", fp).Msg("desired state unchanged")
		return lastApplied, c.ensureLive(ctx, svc, desired)
	}

	values, err := c.resolveSecretRefs(desired)
	if err != nil {
		return lastApplied, err
	}

	content, err := target.Render(values)
	if err != nil {
		return lastApplied, err
	}
	if err := render.WriteFile(svc.ConfigPath, content, 0640); err != nil {
		return lastApplied, err
	}

	if lastApplied.IsZero() || lastApplied.BinaryPath != desired.BinaryPath {
		unit, err := render.UnitFile(svc, desired.BinaryPath)
		if err != nil {
			return lastApplied, err
		}
		if err := c.units.Install(ctx, svc.UnitName(), unit); err != nil {
			return lastApplied, err
		}
	}

	marker := &types.AppliedStateMarker{
		Service:     svc.Name,
		Fingerprint: fp,
		BinaryPath:  desired.BinaryPath,
		AppliedAt:   time.Now().UTC(),
	}

	if desired.ServiceEnabled {
		if err := c.units.Restart(ctx, svc.UnitName()); err != nil {
			return marker, err
		}
	} else {
		if err := c.units.Stop(ctx, svc.UnitName()); err != nil {
			return marker, err
		}
	}

	logger.Info().
		Str("fingerprint", fp).
		Str("mode", string(desired.RelationMode)).
		Bool("enabled", desired.ServiceEnabled).
		Msg("desired state applied")
	return marker, nil
}

// ensureLive restarts an enabled unit the host reports as stopped.
func (c *Controller) ensureLive(ctx context.Context, svc types.ManagedService, desired *types.DesiredState) error {
	if !desired.ServiceEnabled {
		return nil
	}
	running, err := c.units.Running(ctx, svc.UnitName())
	if err != nil {
		return err
	}
	if running {
		return nil
	}
	logger := log.WithService(svc.Name)
	logger.Warn().Msg("unit stopped unexpectedly, restarting")
	return c.units.Restart(ctx, svc.UnitName())
}

// resolveSecretRefs merges the plaintext behind each secret handle into
// a copy of the config values. This is the single place a secret leaves
// the store, and the merged map never outlives the pass.
func (c *Controller) resolveSecretRefs(desired *types.DesiredState) (map[string]string, error) {
	values := make(map[string]string, len(desired.ConfigValues)+len(desired.SecretRefs))
	for k, v := range desired.ConfigValues {
		values[k] = v
	}
	for key, handle := range desired.SecretRefs {
		plain, err := c.secrets.Reveal(handle)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve secret for %s: %w", key, err)
		}
		values[key] = string(plain)
	}
	return values, nil
}

// PrepareDirs creates the managed services' working directories. Safe
// to call on every install event.
func PrepareDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
