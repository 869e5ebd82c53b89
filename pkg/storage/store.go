package storage

import (
	"errors"

	"github.com/cuemby/hutch/pkg/types"
)

// Store is the unit state persistence interface. The controller runtime
// guarantees single-event-at-a-time delivery, so implementations do not
// need cross-process locking beyond what the backing database provides.
type Store interface {
	// Applied-state markers, one per managed service.
	PutMarker(marker *types.AppliedStateMarker) error
	GetMarker(service string) (*types.AppliedStateMarker, error)

	// Relation state: the adapter's FSM state plus the last snapshot
	// published by the remote unit.
	PutRelationState(state string) error
	GetRelationState() (string, error)
	PutRelationSnapshot(snap *types.RelationSnapshot) error
	GetRelationSnapshot() (*types.RelationSnapshot, error)
	DeleteRelationSnapshot() error

	// Secrets, stored encrypted, keyed by opaque handle.
	PutSecret(secret *types.Secret) error
	GetSecret(handle string) (*types.Secret, error)
	DeleteSecret(handle string) error
	DeleteSecretsByKind(kind types.SecretKind) error

	// Resource attachments: resolved filesystem path and whether the
	// executable bit has been set.
	PutResource(rec *ResourceRecord) error
	GetResource(name string) (*ResourceRecord, error)
	DeleteResource(name string) error

	// Last reported status, keyed by service name or the overall key.
	PutStatus(key string, status types.Status) error
	GetStatus(key string) (types.Status, error)

	// Utility
	Close() error
}

// ResourceRecord describes one attached opaque binary resource.
type ResourceRecord struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Executable bool   `json:"executable"`
}

// ErrNotFound is returned by Get operations when no record exists. It
// is a distinct type so callers can treat absence as a normal state
// rather than a failure.
type ErrNotFound struct {
	Kind string
	Key  string
}

func (e *ErrNotFound) Error() string {
	return e.Kind + " not found: " + e.Key
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}
