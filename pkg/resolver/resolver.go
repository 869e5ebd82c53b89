package resolver

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/relation"
	"github.com/cuemby/hutch/pkg/secrets"
	"github.com/cuemby/hutch/pkg/types"
)

// WaitingError signals that a precondition for producing a desired
// state is not yet met. It is expected and transient, not a failure:
// the caller reports a waiting status and performs no side effects.
type WaitingError struct {
	Reason string
}

func (e *WaitingError) Error() string {
	return fmt.Sprintf("waiting: %s", e.Reason)
}

// IsWaiting reports whether err is a WaitingError.
func IsWaiting(err error) bool {
	var w *WaitingError
	return errors.As(err, &w)
}

// BlockedError signals that the operator options are invalid and no
// desired state can be produced until they change. Unlike WaitingError
// it will not resolve on its own.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked: %s", e.Reason)
}

// IsBlocked reports whether err is a BlockedError.
func IsBlocked(err error) bool {
	var b *BlockedError
	return errors.As(err, &b)
}

// Resolver computes the immutable desired state for one managed service
// from the operator options, the attached binary, and the database
// relation. Identical inputs always produce a structurally identical
// DesiredState: database credentials enter as deterministic opaque
// handles, never as plaintext.
type Resolver struct {
	cfg     *config.Config
	secrets *secrets.Store
}

// New returns a Resolver over the given options and secret store.
func New(cfg *config.Config, sec *secrets.Store) *Resolver {
	return &Resolver{cfg: cfg, secrets: sec}
}

// ResolveServer computes the Gitea server's desired state.
//
// binaryPath is the attached resource's path, or empty when no resource
// is attached. An absent resource on a never-configured service yields
// a WaitingError; once configured, the previously applied binary path
// is carried forward so detaching the resource cannot stop a running
// service.
func (r *Resolver) ResolveServer(binaryPath string, relState relation.State, snap *types.RelationSnapshot, lastApplied *types.AppliedStateMarker) (*types.DesiredState, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, &BlockedError{Reason: err.Error()}
	}

	binary, err := r.resolveBinary(types.ResourceGiteaBinary, binaryPath, lastApplied)
	if err != nil {
		return nil, err
	}

	host, port, err := net.SplitHostPort(r.cfg.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", r.cfg.ListenAddress, err)
	}

	desired := &types.DesiredState{
		Service:    r.cfg.GiteaUnit,
		BinaryPath: binary,
		ConfigValues: map[string]string{
			"APP_NAME":         r.cfg.AppName,
			"RUN_MODE":         "prod",
			"server.PROTOCOL":  r.cfg.Protocol,
			"server.HTTP_ADDR": host,
			"server.HTTP_PORT": port,
			"server.ROOT_URL":  r.cfg.EffectiveRootURL(),
			"log.LEVEL":        r.cfg.GiteaLogLevel,
			"repository.ROOT":  filepath.Join(r.cfg.DataDir, "repositories"),
		},
		ServiceEnabled: true,
		RelationMode:   types.RelationModeStandalone,
	}

	switch {
	case relState == relation.StateJoinedIncomplete:
		// A live but incomplete relation must never be applied halfway.
		return nil, &WaitingError{
			Reason: fmt.Sprintf("database relation incomplete, missing %s",
				strings.Join(snap.MissingFields(), ", ")),
		}

	case relState == relation.StateIntegrated:
		if !snap.Complete() {
			return nil, &WaitingError{
				Reason: fmt.Sprintf("database relation incomplete, missing %s",
					strings.Join(snap.MissingFields(), ", ")),
			}
		}
		handle, err := r.secrets.StoreSecret(types.SecretKindDBPassword, []byte(snap.Password))
		if err != nil {
			return nil, err
		}
		desired.RelationMode = types.RelationModeIntegratedDB
		desired.ConfigValues["database.DB_TYPE"] = "postgres"
		desired.ConfigValues["database.HOST"] = net.JoinHostPort(snap.Host, snap.Port)
		desired.ConfigValues["database.NAME"] = snap.Database
		desired.ConfigValues["database.USER"] = snap.Username
		desired.SecretRefs = map[string]string{"database.PASSWD": handle}

	default:
		desired.ConfigValues["database.DB_TYPE"] = "sqlite3"
		desired.ConfigValues["database.PATH"] = filepath.Join(r.cfg.DataDir, "gitea.db")
	}

	return desired, nil
}

// ResolveRunner computes the act_runner agent's desired state. The
// runner never consumes the database relation; it only needs its binary
// and the instance URL it reports jobs to.
func (r *Resolver) ResolveRunner(binaryPath string, lastApplied *types.AppliedStateMarker) (*types.DesiredState, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, &BlockedError{Reason: err.Error()}
	}

	binary, err := r.resolveBinary(types.ResourceRunnerBinary, binaryPath, lastApplied)
	if err != nil {
		return nil, err
	}

	return &types.DesiredState{
		Service:    r.cfg.RunnerUnit,
		BinaryPath: binary,
		ConfigValues: map[string]string{
			"instance_url": r.cfg.EffectiveRootURL(),
			"name":         r.cfg.RunnerName,
			"labels":       r.cfg.RunnerLabels,
			"data_dir":     r.cfg.RunnerDataDir,
		},
		ServiceEnabled: true,
		RelationMode:   types.RelationModeStandalone,
	}, nil
}

func (r *Resolver) resolveBinary(resource, binaryPath string, lastApplied *types.AppliedStateMarker) (string, error) {
	if binaryPath != "" {
		return binaryPath, nil
	}
	if !lastApplied.IsZero() && lastApplied.BinaryPath != "" {
		return lastApplied.BinaryPath, nil
	}
	return "", &WaitingError{Reason: fmt.Sprintf("resource %s not attached", resource)}
}
