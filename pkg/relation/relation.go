package relation

import (
	"fmt"

	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

// State is the database relation's lifecycle state.
type State string

const (
	// StateNone means no database relation exists; the managed service
	// runs against its embedded storage.
	StateNone State = "no-relation"

	// StateJoinedIncomplete means the relation exists but the remote
	// unit has not yet published all required connection fields.
	StateJoinedIncomplete State = "joined-incomplete"

	// StateIntegrated means all connection fields are available and the
	// managed service should use the external database.
	StateIntegrated State = "integrated"

	// StateBroken is the transient state between a relation-broken
	// event and the reconciliation pass that removes the external
	// database from the rendered configuration. Settle moves it to
	// StateNone once that pass completes.
	StateBroken State = "broken"
)

// Adapter tracks the database relation's lifecycle and owns the last
// snapshot published by the remote unit. State survives process
// restarts through the unit state store, since the controller delivers
// each event to a fresh invocation.
type Adapter struct {
	store storage.Store
	state State
}

// NewAdapter restores the adapter from persisted state, defaulting to
// StateNone for a unit that has never seen the relation.
func NewAdapter(store storage.Store) (*Adapter, error) {
	state, err := store.GetRelationState()
	if storage.IsNotFound(err) {
		return &Adapter{store: store, state: StateNone}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore relation state: %w", err)
	}
	return &Adapter{store: store, state: State(state)}, nil
}

// Current returns the adapter's present state.
func (a *Adapter) Current() State {
	return a.state
}

// HasRelation reports whether a live relation exists, i.e. the resolver
// must apply the credential completeness gate. Broken counts as no
// relation: the pass following relation-broken renders standalone
// configuration.
func (a *Adapter) HasRelation() bool {
	return a.state == StateJoinedIncomplete || a.state == StateIntegrated
}

// Snapshot returns the last persisted relation snapshot, or nil when
// none exists.
func (a *Adapter) Snapshot() (*types.RelationSnapshot, error) {
	snap, err := a.store.GetRelationSnapshot()
	if storage.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read relation snapshot: %w", err)
	}
	return snap, nil
}

// Observe applies one relation event to the state machine and persists
// the outcome. Events that do not alter field completeness leave the
// state unchanged; the lifecycle controller's fingerprint check makes
// the subsequent pass a no-op.
func (a *Adapter) Observe(kind types.EventKind, snap *types.RelationSnapshot) (State, error) {
	prev := a.state

	switch kind {
	case types.EventRelationJoined, types.EventRelationChanged:
		if snap != nil {
			if err := a.store.PutRelationSnapshot(snap); err != nil {
				return a.state, fmt.Errorf("failed to persist relation snapshot: %w", err)
			}
		} else {
			// An event without payload keeps whatever the remote unit
			// published last.
			prior, err := a.Snapshot()
			if err != nil {
				return a.state, err
			}
			snap = prior
		}
		if snap.Complete() {
			a.state = StateIntegrated
		} else {
			a.state = StateJoinedIncomplete
		}

	case types.EventRelationBroken:
		if err := a.store.DeleteRelationSnapshot(); err != nil {
			return a.state, fmt.Errorf("failed to discard relation snapshot: %w", err)
		}
		a.state = StateBroken

	default:
		return a.state, fmt.Errorf("event %s is not a relation event", kind)
	}

	if err := a.store.PutRelationState(string(a.state)); err != nil {
		return a.state, fmt.Errorf("failed to persist relation state: %w", err)
	}

	if prev != a.state {
		logger := log.WithComponent("relation")
		logger.Info().
			Str("from", string(prev)).
			Str("to", string(a.state)).
			Msg("relation state changed")
	}
	return a.state, nil
}

// Settle completes the broken transition once the reconciliation pass
// that removed the external database has been applied.
func (a *Adapter) Settle() error {
	if a.state != StateBroken {
		return nil
	}
	a.state = StateNone
	if err := a.store.PutRelationState(string(a.state)); err != nil {
		return fmt.Errorf("failed to persist relation state: %w", err)
	}
	logger := log.WithComponent("relation")
	logger.Info().Msg("relation removed, reverted to standalone")
	return nil
}
