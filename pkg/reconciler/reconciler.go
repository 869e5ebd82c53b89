package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/lifecycle"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/relation"
	"github.com/cuemby/hutch/pkg/render"
	"github.com/cuemby/hutch/pkg/resolver"
	"github.com/cuemby/hutch/pkg/secrets"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

// OverallStatusKey is the status-store key for the aggregated unit
// status.
const OverallStatusKey = "overall"

// Driver is the per-event reconciliation state machine. One delivered
// event runs one pass: resolve the desired state of each managed
// service, diff it against the last applied marker, apply, persist the
// marker, and report status. The controller runtime delivers one event
// at a time; the mutex only guards against the periodic loop racing an
// explicit dispatch in the same process.
type Driver struct {
	cfg        *config.Config
	store      storage.Store
	secrets    *secrets.Store
	resolver   *resolver.Resolver
	controller *lifecycle.Controller
	adapter    *relation.Adapter
	broker     *events.Broker

	// Interval between periodic update-status passes in Run.
	Interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewDriver assembles a Driver over the given collaborators. broker may
// be nil when no subscriber exists (one-shot dispatch).
func NewDriver(
	cfg *config.Config,
	store storage.Store,
	sec *secrets.Store,
	controller *lifecycle.Controller,
	adapter *relation.Adapter,
	broker *events.Broker,
) *Driver {
	return &Driver{
		cfg:        cfg,
		store:      store,
		secrets:    sec,
		resolver:   resolver.New(cfg, sec),
		controller: controller,
		adapter:    adapter,
		broker:     broker,
		Interval:   5 * time.Minute,
		stopCh:     make(chan struct{}),
	}
}

// GiteaService returns the Gitea server's service descriptor.
func GiteaService(cfg *config.Config) types.ManagedService {
	return types.ManagedService{
		Name:         cfg.GiteaUnit,
		ResourceName: types.ResourceGiteaBinary,
		ConfigPath:   cfg.GiteaConfigPath(),
		Args:         []string{"web", "--config", cfg.GiteaConfigPath()},
		WorkingDir:   cfg.DataDir,
		Description:  "Gitea git hosting server",
	}
}

// RunnerService returns the act_runner agent's service descriptor.
func RunnerService(cfg *config.Config) types.ManagedService {
	return types.ManagedService{
		Name:         cfg.RunnerUnit,
		ResourceName: types.ResourceRunnerBinary,
		ConfigPath:   cfg.RunnerConfigPath(),
		Args:         []string{"daemon", "--config", cfg.RunnerConfigPath()},
		WorkingDir:   cfg.RunnerDataDir,
		Description:  "Gitea Actions runner agent",
	}
}

// HandleEvent runs one reconciliation pass for the delivered event and
// returns the aggregated status in the controller's wire form. The
// returned status is always valid; failures are folded into it rather
// than surfaced as bare errors.
func (d *Driver) HandleEvent(ctx context.Context, event types.Event) types.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	timer := metrics.NewTimer()
	logger := log.WithEvent(string(event.Kind))
	logger.Info().Msg("handling event")
	d.publish(events.New(events.TypePassStarted, "reconciliation pass started",
		map[string]string{"event": string(event.Kind)}))

	status := d.handle(ctx, event)

	timer.ObserveDurationVec(metrics.ReconcileDuration, string(event.Kind))
	metrics.ReconcilePassesTotal.WithLabelValues(string(event.Kind), string(status.Kind)).Inc()
	if status.Kind == types.StatusError {
		metrics.ReconcileFailuresTotal.WithLabelValues(status.Reason).Inc()
	}

	if err := d.store.PutStatus(OverallStatusKey, status); err != nil {
		logger.Error().Err(err).Msg("failed to persist status")
	}

	logger.Info().Str("status", status.String()).Msg("pass reported")
	return status
}

func (d *Driver) handle(ctx context.Context, event types.Event) types.Status {
	switch event.Kind {
	case types.EventInstall:
		if err := d.prepareHost(); err != nil {
			return types.ErrorStatus(err.Error())
		}

	case types.EventResourceAttached:
		for name, path := range event.Resources {
			if err := d.secrets.AttachResource(name, path); err != nil {
				return types.ErrorStatus(err.Error())
			}
		}

	case types.EventRelationJoined, types.EventRelationChanged, types.EventRelationBroken:
		prev := d.adapter.Current()
		state, err := d.adapter.Observe(event.Kind, event.RelationData)
		if err != nil {
			return types.ErrorStatus(err.Error())
		}
		if state != prev {
			d.publish(events.New(events.TypeRelationState, "relation state changed",
				map[string]string{"from": string(prev), "to": string(state)}))
		}
		if state == relation.StateBroken {
			// Stale credentials must not survive the relation.
			if err := d.secrets.DeleteByKind(types.SecretKindDBPassword); err != nil {
				return types.ErrorStatus(err.Error())
			}
		}
	}

	status := d.reconcileAll(ctx, event)

	// The broken state resolves only after the pass that reverted the
	// rendered config to standalone.
	if d.adapter.Current() == relation.StateBroken && status.Kind != types.StatusError {
		if err := d.adapter.Settle(); err != nil {
			return types.ErrorStatus(err.Error())
		}
	}
	return status
}

// reconcileAll resolves and applies both managed services and
// aggregates their statuses, worst first.
func (d *Driver) reconcileAll(ctx context.Context, event types.Event) types.Status {
	statuses := []types.Status{
		d.reconcileService(ctx, event, d.giteaTarget()),
		d.reconcileService(ctx, event, d.runnerTarget()),
	}

	worst := types.Active()
	for _, s := range statuses {
		if severity(s.Kind) > severity(worst.Kind) {
			worst = s
		}
	}
	return worst
}

func (d *Driver) reconcileService(ctx context.Context, event types.Event, target lifecycle.Target) types.Status {
	svc := target.Service
	logger := log.WithService(svc.Name)

	lastApplied, err := d.store.GetMarker(svc.Name)
	if err != nil && !storage.IsNotFound(err) {
		return types.ErrorStatus(fmt.Sprintf("state store: %v", err))
	}

	binary, err := d.resolveBinary(svc.ResourceName)
	if err != nil {
		return types.ErrorStatus(err.Error())
	}

	desired, err := d.resolve(svc, binary, lastApplied)
	if resolver.IsWaiting(err) {
		logger.Info().Str("reason", err.Error()).Msg("preconditions not met")
		d.publish(events.New(events.TypePassWaiting, err.Error(),
			map[string]string{"service": svc.Name, "event": string(event.Kind)}))
		return types.Waiting(err.Error())
	}
	if resolver.IsBlocked(err) {
		logger.Warn().Str("reason", err.Error()).Msg("invalid options")
		return types.Blocked(err.Error())
	}
	if err != nil {
		return types.ErrorStatus(err.Error())
	}

	marker, err := d.controller.Apply(ctx, target, desired, lastApplied)
	if marker != nil && !marker.IsZero() && marker != lastApplied {
		if putErr := d.store.PutMarker(marker); putErr != nil {
			logger.Error().Err(putErr).Msg("failed to persist applied-state marker")
		}
	}
	if err != nil {
		d.publish(events.New(events.TypePassFailed, err.Error(),
			map[string]string{"service": svc.Name, "event": string(event.Kind)}))
		_ = d.store.PutStatus(svc.Name, types.ErrorStatus(err.Error()))
		return types.ErrorStatus(err.Error())
	}

	if lastApplied.IsZero() || marker.Fingerprint != lastApplied.Fingerprint {
		metrics.ServiceRestartsTotal.WithLabelValues(svc.Name).Inc()
		d.publish(events.New(events.TypePassApplied, "configuration applied",
			map[string]string{"service": svc.Name, "fingerprint": marker.Fingerprint}))
	}

	_ = d.store.PutStatus(svc.Name, types.Active())
	return types.Active()
}

func (d *Driver) resolve(svc types.ManagedService, binary string, lastApplied *types.AppliedStateMarker) (*types.DesiredState, error) {
	if svc.ResourceName == types.ResourceGiteaBinary {
		snap, err := d.adapter.Snapshot()
		if err != nil {
			return nil, err
		}
		return d.resolver.ResolveServer(binary, d.adapter.Current(), snap, lastApplied)
	}
	return d.resolver.ResolveRunner(binary, lastApplied)
}

// resolveBinary maps an unattached resource to an empty path; the
// resolver decides whether that means waiting or carrying the last
// applied binary forward.
func (d *Driver) resolveBinary(resource string) (string, error) {
	path, err := d.secrets.ResolveResource(resource)
	if secrets.IsNotAttached(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func (d *Driver) prepareHost() error {
	return lifecycle.PrepareDirs(
		d.cfg.DataDir,
		d.cfg.ConfigDir,
		d.cfg.RunnerDataDir,
		d.cfg.RunnerConfigDir,
		d.cfg.StateDir,
	)
}

func (d *Driver) giteaTarget() lifecycle.Target {
	return lifecycle.Target{
		Service: GiteaService(d.cfg),
		Render: func(values map[string]string) ([]byte, error) {
			return render.AppINI(values), nil
		},
	}
}

func (d *Driver) runnerTarget() lifecycle.Target {
	return lifecycle.Target{
		Service: RunnerService(d.cfg),
		Render:  render.RunnerConfig,
	}
}

func (d *Driver) publish(event *events.Event) {
	if d.broker != nil {
		d.broker.Publish(event)
	}
}

func severity(kind types.StatusKind) int {
	switch kind {
	case types.StatusError:
		return 3
	case types.StatusBlocked:
		return 2
	case types.StatusWaiting:
		return 1
	default:
		return 0
	}
}

// Start begins the periodic update-status loop.
func (d *Driver) Start() {
	go d.run()
}

// Stop stops the periodic loop.
func (d *Driver) Stop() {
	close(d.stopCh)
}

func (d *Driver) run() {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.HandleEvent(context.Background(), types.Event{
				Kind:      types.EventUpdateStatus,
				Timestamp: time.Now().UTC(),
			})
		case <-d.stopCh:
			return
		}
	}
}
