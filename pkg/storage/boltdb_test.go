package storage

import (
	"testing"
	"time"

	"github.com/cuemby/hutch/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMarkerRoundtrip(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetMarker("hutch-gitea"); !IsNotFound(err) {
		t.Fatalf("GetMarker() on empty store error = %v, want ErrNotFound", err)
	}

	marker := &types.AppliedStateMarker{
		Service:     "hutch-gitea",
		Fingerprint: "abc123",
		BinaryPath:  "/usr/local/bin/gitea",
		AppliedAt:   time.Now().UTC(),
	}
	if err := store.PutMarker(marker); err != nil {
		t.Fatalf("PutMarker() error = %v", err)
	}

	got, err := store.GetMarker("hutch-gitea")
	if err != nil {
		t.Fatalf("GetMarker() error = %v", err)
	}
	if got.Fingerprint != marker.Fingerprint || got.BinaryPath != marker.BinaryPath {
		t.Errorf("GetMarker() = %+v, want %+v", got, marker)
	}

	// Markers are per service.
	if _, err := store.GetMarker("hutch-runner"); !IsNotFound(err) {
		t.Errorf("GetMarker() for other service error = %v, want ErrNotFound", err)
	}
}

func TestRelationSnapshotRoundtrip(t *testing.T) {
	store := newTestStore(t)

	snap := &types.RelationSnapshot{
		Host:     "10.0.0.5",
		Port:     "5432",
		Database: "giteadb",
		Username: "gitea",
		Password: "hunter2",
	}
	if err := store.PutRelationSnapshot(snap); err != nil {
		t.Fatalf("PutRelationSnapshot() error = %v", err)
	}

	got, err := store.GetRelationSnapshot()
	if err != nil {
		t.Fatalf("GetRelationSnapshot() error = %v", err)
	}
	if *got != *snap {
		t.Errorf("GetRelationSnapshot() = %+v, want %+v", got, snap)
	}

	if err := store.DeleteRelationSnapshot(); err != nil {
		t.Fatalf("DeleteRelationSnapshot() error = %v", err)
	}
	if _, err := store.GetRelationSnapshot(); !IsNotFound(err) {
		t.Errorf("GetRelationSnapshot() after delete error = %v, want ErrNotFound", err)
	}
}

func TestRelationStateRoundtrip(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetRelationState(); !IsNotFound(err) {
		t.Fatalf("GetRelationState() on empty store error = %v, want ErrNotFound", err)
	}

	if err := store.PutRelationState("joined-incomplete"); err != nil {
		t.Fatalf("PutRelationState() error = %v", err)
	}
	state, err := store.GetRelationState()
	if err != nil {
		t.Fatalf("GetRelationState() error = %v", err)
	}
	if state != "joined-incomplete" {
		t.Errorf("GetRelationState() = %q, want %q", state, "joined-incomplete")
	}
}

func TestSecretOperations(t *testing.T) {
	store := newTestStore(t)

	secrets := []*types.Secret{
		{Handle: "h1", Kind: types.SecretKindDBPassword, Data: []byte{1, 2, 3}},
		{Handle: "h2", Kind: types.SecretKindDBPassword, Data: []byte{4, 5, 6}},
		{Handle: "h3", Kind: types.SecretKindRunnerToken, Data: []byte{7, 8, 9}},
	}
	for _, sec := range secrets {
		if err := store.PutSecret(sec); err != nil {
			t.Fatalf("PutSecret(%s) error = %v", sec.Handle, err)
		}
	}

	got, err := store.GetSecret("h3")
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if got.Kind != types.SecretKindRunnerToken {
		t.Errorf("GetSecret() kind = %q, want %q", got.Kind, types.SecretKindRunnerToken)
	}

	if err := store.DeleteSecretsByKind(types.SecretKindDBPassword); err != nil {
		t.Fatalf("DeleteSecretsByKind() error = %v", err)
	}
	if _, err := store.GetSecret("h1"); !IsNotFound(err) {
		t.Errorf("GetSecret(h1) after kind delete error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetSecret("h2"); !IsNotFound(err) {
		t.Errorf("GetSecret(h2) after kind delete error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetSecret("h3"); err != nil {
		t.Errorf("GetSecret(h3) error = %v, want kept", err)
	}
}

func TestResourceRoundtrip(t *testing.T) {
	store := newTestStore(t)

	rec := &ResourceRecord{Name: "gitea-binary", Path: "/var/lib/hutch/resources/gitea", Executable: true}
	if err := store.PutResource(rec); err != nil {
		t.Fatalf("PutResource() error = %v", err)
	}

	got, err := store.GetResource("gitea-binary")
	if err != nil {
		t.Fatalf("GetResource() error = %v", err)
	}
	if *got != *rec {
		t.Errorf("GetResource() = %+v, want %+v", got, rec)
	}

	if err := store.DeleteResource("gitea-binary"); err != nil {
		t.Fatalf("DeleteResource() error = %v", err)
	}
	if _, err := store.GetResource("gitea-binary"); !IsNotFound(err) {
		t.Errorf("GetResource() after delete error = %v, want ErrNotFound", err)
	}
}

func TestStatusRoundtrip(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetStatus("overall"); !IsNotFound(err) {
		t.Fatalf("GetStatus() on empty store error = %v, want ErrNotFound", err)
	}

	status := types.Blocked("gitea-log-level \"loud\" not allowed")
	if err := store.PutStatus("overall", status); err != nil {
		t.Fatalf("PutStatus() error = %v", err)
	}

	got, err := store.GetStatus("overall")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.Kind != types.StatusBlocked || got.Reason != status.Reason {
		t.Errorf("GetStatus() = %+v, want %+v", got, status)
	}
}
