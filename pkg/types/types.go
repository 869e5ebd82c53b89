package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"time"
)

// RelationMode selects the storage backend rendered into a managed
// service's configuration.
type RelationMode string

const (
	// RelationModeStandalone uses the embedded SQLite backend.
	RelationModeStandalone RelationMode = "standalone"

	// RelationModeIntegratedDB uses an external PostgreSQL published
	// over the database relation.
	RelationModeIntegratedDB RelationMode = "integrated-db"
)

// DesiredState is the immutable target configuration computed for one
// reconciliation pass. Identical inputs to the resolver always produce a
// structurally identical DesiredState, so its fingerprint can be used as
// an idempotency marker.
type DesiredState struct {
	Service        string            `json:"service"`
	BinaryPath     string            `json:"binary_path"`
	ConfigValues   map[string]string `json:"config_values"`
	SecretRefs     map[string]string `json:"secret_refs,omitempty"`
	ServiceEnabled bool              `json:"service_enabled"`
	RelationMode   RelationMode      `json:"relation_mode"`
}

// Fingerprint returns a deterministic SHA-256 hash of the desired state.
// Maps are hashed in sorted key order so iteration order cannot influence
// the result. Secret refs carry opaque handles, never plaintext, and a
// handle changes when the underlying credential rotates, so the
// fingerprint still changes exactly when the rendered output would.
func (d *DesiredState) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%t\x00%s\x00", d.Service, d.BinaryPath, d.ServiceEnabled, d.RelationMode)
	hashSorted(h, "config", d.ConfigValues)
	hashSorted(h, "secrets", d.SecretRefs)
	return hex.EncodeToString(h.Sum(nil))
}

func hashSorted(h io.Writer, section string, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(h, "%s\x00", section)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\x00", k, m[k])
	}
}

// AppliedStateMarker records the fingerprint of the last DesiredState
// that was successfully applied to the host, persisted per service.
type AppliedStateMarker struct {
	Service     string    `json:"service"`
	Fingerprint string    `json:"fingerprint"`
	BinaryPath  string    `json:"binary_path"`
	AppliedAt   time.Time `json:"applied_at"`
}

// IsZero reports whether the marker has never been written, i.e. the
// service has never been configured.
func (m *AppliedStateMarker) IsZero() bool {
	return m == nil || m.Fingerprint == ""
}

// RelationSnapshot is the set of connection fields published by the
// remote database unit at the time of an event. It is owned entirely by
// the remote unit; hutch only reads it and must tolerate partial or
// absent snapshots.
type RelationSnapshot struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Complete reports whether all required connection fields are present.
func (r *RelationSnapshot) Complete() bool {
	if r == nil {
		return false
	}
	return r.Host != "" && r.Port != "" && r.Database != "" && r.Username != "" && r.Password != ""
}

// MissingFields returns the names of the required fields that are empty.
func (r *RelationSnapshot) MissingFields() []string {
	if r == nil {
		return []string{"host", "port", "database", "username", "password"}
	}
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"host", r.Host},
		{"port", r.Port},
		{"database", r.Database},
		{"username", r.Username},
		{"password", r.Password},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// SecretKind classifies the sensitive values hutch manages.
type SecretKind string

const (
	SecretKindDBPassword  SecretKind = "db-password"
	SecretKindRunnerToken SecretKind = "runner-token"
)

// Secret holds an encrypted sensitive value. Data is AES-256-GCM
// ciphertext; the plaintext exists in memory only at the single
// injection point that decrypts it.
type Secret struct {
	Handle    string     `json:"handle"`
	Kind      SecretKind `json:"kind"`
	Data      []byte     `json:"data"`
	CreatedAt time.Time  `json:"created_at"`
}

// RunState is the host-reported state of a managed unit.
type RunState string

const (
	RunStateRunning RunState = "running"
	RunStateStopped RunState = "stopped"
)

// Named binary resources the controller can attach.
const (
	ResourceGiteaBinary  = "gitea-binary"
	ResourceRunnerBinary = "runner-binary"
)

// ManagedService describes one host service under hutch's management.
type ManagedService struct {
	// Name is the systemd unit name without the ".service" suffix.
	Name string

	// ResourceName is the attached binary resource this service runs.
	ResourceName string

	// ConfigPath is where the rendered configuration file is written.
	ConfigPath string

	// Args are the arguments passed to the binary, config path included.
	Args []string

	// WorkingDir is the unit's working directory.
	WorkingDir string

	// Description appears in the rendered unit file.
	Description string
}

// UnitName returns the full systemd unit name.
func (s ManagedService) UnitName() string {
	return s.Name + ".service"
}

// StatusKind is the coarse unit status reported back to the controller.
type StatusKind string

const (
	StatusWaiting StatusKind = "waiting"
	StatusActive  StatusKind = "active"
	StatusBlocked StatusKind = "blocked"
	StatusError   StatusKind = "error"
)

// Status is the operator-visible outcome of a reconciliation pass.
// Blocked and error statuses always carry the specific reason so an
// operator can diagnose them without reading logs.
type Status struct {
	Kind   StatusKind `json:"kind"`
	Reason string     `json:"reason,omitempty"`
}

// String renders the status in the controller's wire form, one of
// waiting, active, blocked:<reason>, error:<reason>.
func (s Status) String() string {
	switch s.Kind {
	case StatusBlocked, StatusError:
		return fmt.Sprintf("%s:%s", s.Kind, s.Reason)
	default:
		return string(s.Kind)
	}
}

// Waiting returns a waiting status with the given reason.
func Waiting(reason string) Status {
	return Status{Kind: StatusWaiting, Reason: reason}
}

// Active returns an active status.
func Active() Status {
	return Status{Kind: StatusActive}
}

// Blocked returns a blocked status with the given reason.
func Blocked(reason string) Status {
	return Status{Kind: StatusBlocked, Reason: reason}
}

// ErrorStatus returns an error status with the given reason.
func ErrorStatus(reason string) Status {
	return Status{Kind: StatusError, Reason: reason}
}

// EventKind identifies a controller-delivered lifecycle event.
type EventKind string

const (
	EventInstall          EventKind = "install"
	EventStart            EventKind = "start"
	EventConfigChanged    EventKind = "config-changed"
	EventUpdateStatus     EventKind = "update-status"
	EventResourceAttached EventKind = "resource-attached"
	EventRelationJoined   EventKind = "database-relation-joined"
	EventRelationChanged  EventKind = "database-relation-changed"
	EventRelationBroken   EventKind = "database-relation-broken"
)

// KnownEventKinds lists every event kind the dispatcher accepts.
var KnownEventKinds = []EventKind{
	EventInstall,
	EventStart,
	EventConfigChanged,
	EventUpdateStatus,
	EventResourceAttached,
	EventRelationJoined,
	EventRelationChanged,
	EventRelationBroken,
}

// ParseEventKind validates a controller-supplied event name.
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range KnownEventKinds {
		if s == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind: %q", s)
}

// Event is one delivered lifecycle event. RelationData and Resources are
// optional payloads carried by relation and resource events.
type Event struct {
	Kind         EventKind         `json:"kind"`
	RelationData *RelationSnapshot `json:"relation_data,omitempty"`
	Resources    map[string]string `json:"resources,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}
