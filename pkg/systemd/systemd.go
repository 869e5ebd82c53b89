package systemd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/util"

	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/render"
)

// EtcSystemdDir is where managed unit files are written.
const EtcSystemdDir = "/etc/systemd/system"

// ServiceStartError reports a unit that failed to reach the running
// state. The configuration that was applied before the start attempt
// remains valid, so the caller records it and retries the start on the
// next pass.
type ServiceStartError struct {
	Unit string
	Err  error
}

func (e *ServiceStartError) Error() string {
	return fmt.Sprintf("service %s failed to start: %v", e.Unit, e.Err)
}

func (e *ServiceStartError) Unwrap() error { return e.Err }

// DBusAPI is the subset of the systemd D-Bus connection the manager
// uses. Tests substitute a fake through the factory.
type DBusAPI interface {
	ListUnitsContext(ctx context.Context) ([]dbus.UnitStatus, error)
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	EnableUnitFilesContext(ctx context.Context, files []string, runtime, force bool) (bool, []dbus.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]dbus.DisableUnitFileChange, error)
	ReloadContext(ctx context.Context) error
	Close()
}

// DBusFactory opens a D-Bus connection to systemd.
type DBusFactory func(ctx context.Context) (DBusAPI, error)

// NewDBusAPI is the production factory.
func NewDBusAPI(ctx context.Context) (DBusAPI, error) {
	return dbus.NewWithContext(ctx)
}

// IsRunning reports whether systemd is the local init system.
func IsRunning() bool {
	return util.IsRunningSystemd()
}

// Manager installs and controls the managed units over D-Bus. Every
// operation opens a fresh connection; passes are short-lived and
// infrequent, so holding one open buys nothing.
type Manager struct {
	unitDir string
	newConn DBusFactory
}

// NewManager returns a Manager writing to /etc/systemd/system and
// talking to the real system bus.
func NewManager() *Manager {
	return &Manager{unitDir: EtcSystemdDir, newConn: NewDBusAPI}
}

// NewManagerWithConn returns a Manager with an explicit unit directory
// and connection factory.
func NewManagerWithConn(unitDir string, factory DBusFactory) *Manager {
	return &Manager{unitDir: unitDir, newConn: factory}
}

// UnitPath returns where the given unit's file is written.
func (m *Manager) UnitPath(unit string) string {
	return filepath.Join(m.unitDir, unit)
}

// Install writes the unit file, reloads the daemon, and enables the
// unit so it survives reboots. Idempotent: rewriting identical content
// and re-enabling an enabled unit are both no-ops to systemd.
func (m *Manager) Install(ctx context.Context, unit string, content []byte) error {
	if err := render.WriteFile(m.UnitPath(unit), content, 0644); err != nil {
		return fmt.Errorf("failed to write unit file for %s: %w", unit, err)
	}

	conn, err := m.newConn(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon reload failed for %s: %w", unit, err)
	}
	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{m.UnitPath(unit)}, false, true); err != nil {
		return fmt.Errorf("failed to enable %s: %w", unit, err)
	}

	logger := log.WithComponent("systemd")
	logger.Debug().Str("unit", unit).Msg("unit installed")
	return nil
}

// Running reports whether the unit is loaded and active.
func (m *Manager) Running(ctx context.Context, unit string) (bool, error) {
	conn, err := m.newConn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	units, err := conn.ListUnitsContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list units: %w", err)
	}
	for _, u := range units {
		if u.Name == unit {
			return u.LoadState == "loaded" && u.ActiveState == "active", nil
		}
	}
	return false, nil
}

// Start brings the unit to the running state. Starting a unit that is
// already running is a no-op.
func (m *Manager) Start(ctx context.Context, unit string) error {
	running, err := m.Running(ctx, unit)
	if err != nil {
		return err
	}
	if running {
		return nil
	}
	if err := m.job(ctx, unit, "start", DBusAPI.StartUnitContext); err != nil {
		return &ServiceStartError{Unit: unit, Err: err}
	}
	logger := log.WithComponent("systemd")
	logger.Info().Str("unit", unit).Msg("unit started")
	return nil
}

// Restart restarts the unit, starting it if it is not running.
func (m *Manager) Restart(ctx context.Context, unit string) error {
	if err := m.job(ctx, unit, "restart", DBusAPI.RestartUnitContext); err != nil {
		return &ServiceStartError{Unit: unit, Err: err}
	}
	logger := log.WithComponent("systemd")
	logger.Info().Str("unit", unit).Msg("unit restarted")
	return nil
}

// Stop brings the unit to the stopped state. Stopping a unit that is
// not running is a no-op.
func (m *Manager) Stop(ctx context.Context, unit string) error {
	running, err := m.Running(ctx, unit)
	if err != nil {
		return err
	}
	if !running {
		return nil
	}
	if err := m.job(ctx, unit, "stop", DBusAPI.StopUnitContext); err != nil {
		return fmt.Errorf("failed to stop %s: %w", unit, err)
	}
	logger := log.WithComponent("systemd")
	logger.Info().Str("unit", unit).Msg("unit stopped")
	return nil
}

// Remove disables the unit and deletes its unit file. Removing a unit
// that was never installed is a no-op.
func (m *Manager) Remove(ctx context.Context, unit string) error {
	conn, err := m.newConn(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	if _, err := conn.DisableUnitFilesContext(ctx, []string{unit}, false); err != nil {
		return fmt.Errorf("failed to disable %s: %w", unit, err)
	}
	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon reload failed for %s: %w", unit, err)
	}
	if err := os.Remove(m.UnitPath(unit)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete unit file for %s: %w", unit, err)
	}
	return nil
}

type jobFunc func(api DBusAPI, ctx context.Context, name, mode string, ch chan<- string) (int, error)

// job runs one systemd unit job in "fail" mode and waits for its
// result. Any result other than "done" is a failure.
func (m *Manager) job(ctx context.Context, unit, op string, run jobFunc) error {
	conn, err := m.newConn(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	statusCh := make(chan string, 1)
	if _, err := run(conn, ctx, unit, "fail", statusCh); err != nil {
		return fmt.Errorf("dbus %s request failed: %w", op, err)
	}

	select {
	case status := <-statusCh:
		if status != "done" {
			return fmt.Errorf("%s job finished with status %q", op, status)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
