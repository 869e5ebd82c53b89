package secrets

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/security"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

// SecretStoreError reports a failure of the backing store while
// reading or writing a secret. The raw value is never part of the
// error text.
type SecretStoreError struct {
	Op  string
	Err error
}

func (e *SecretStoreError) Error() string {
	return fmt.Sprintf("secret store %s failed: %v", e.Op, e.Err)
}

func (e *SecretStoreError) Unwrap() error { return e.Err }

// ResourceNotAttachedError is returned when a caller eagerly resolves a
// resource that has not been attached. The resolver treats absence as a
// waiting condition instead; see pkg/resolver.
type ResourceNotAttachedError struct {
	Name string
}

func (e *ResourceNotAttachedError) Error() string {
	return fmt.Sprintf("resource not attached: %s", e.Name)
}

// IsNotAttached reports whether err is a ResourceNotAttachedError.
func IsNotAttached(err error) bool {
	var na *ResourceNotAttachedError
	return errors.As(err, &na)
}

// Store manages secrets and attached binary resources. Secrets are
// persisted AES-256-GCM encrypted and referenced everywhere by opaque
// handle; Reveal is the single call site that yields plaintext.
type Store struct {
	store   storage.Store
	manager *security.SecretsManager
}

// NewStore creates a secret and resource store over the given unit
// state store, with encryption keyed to the unit identity.
func NewStore(store storage.Store, unitID string) (*Store, error) {
	manager, err := security.NewSecretsManager(security.DeriveKeyFromUnitID(unitID))
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets manager: %w", err)
	}
	return &Store{store: store, manager: manager}, nil
}

// StoreSecret encrypts and persists a sensitive value, returning its
// opaque handle. The handle is derived from the kind and a digest of
// the value, so storing the same value twice is idempotent and the
// configuration resolver stays deterministic.
func (s *Store) StoreSecret(kind types.SecretKind, value []byte) (string, error) {
	if len(value) == 0 {
		return "", &SecretStoreError{Op: "store", Err: fmt.Errorf("empty %s value", kind)}
	}

	handle := deriveHandle(kind, value)

	// Already stored under the same handle; nothing to do.
	if _, err := s.store.GetSecret(handle); err == nil {
		return handle, nil
	} else if !storage.IsNotFound(err) {
		return "", &SecretStoreError{Op: "read", Err: err}
	}

	data, err := s.manager.Encrypt(value)
	if err != nil {
		return "", &SecretStoreError{Op: "encrypt", Err: err}
	}

	secret := &types.Secret{
		Handle:    handle,
		Kind:      kind,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.PutSecret(secret); err != nil {
		return "", &SecretStoreError{Op: "write", Err: err}
	}

	logger := log.WithComponent("secrets")
	logger.Debug().
		Str("kind", string(kind)).
		Str("handle", handle).
		Msg("secret stored")
	return handle, nil
}

// Reveal decrypts the secret behind a handle. This is the only point in
// hutch where plaintext secret material is produced; callers must not
// retain the returned slice beyond the current reconciliation pass.
func (s *Store) Reveal(handle string) ([]byte, error) {
	secret, err := s.store.GetSecret(handle)
	if err != nil {
		return nil, &SecretStoreError{Op: "read", Err: err}
	}
	value, err := s.manager.Decrypt(secret.Data)
	if err != nil {
		return nil, &SecretStoreError{Op: "decrypt", Err: err}
	}
	return value, nil
}

// DeleteByKind removes every secret of the given kind. Used on
// relation-broken so stale database credentials do not outlive the
// relation.
func (s *Store) DeleteByKind(kind types.SecretKind) error {
	if err := s.store.DeleteSecretsByKind(kind); err != nil {
		return &SecretStoreError{Op: "delete", Err: err}
	}
	return nil
}

// deriveHandle produces a stable opaque handle from the kind and a
// digest of the value. The handle reveals nothing about the value.
func deriveHandle(kind types.SecretKind, value []byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(value)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)[:16])
}

// AttachResource records the controller-resolved path of a named binary
// resource. The path itself is owned by the controller runtime and is
// read-only to hutch.
func (s *Store) AttachResource(name, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("resource %s path unusable: %w", name, err)
	}
	rec := &storage.ResourceRecord{Name: name, Path: path}
	if err := s.store.PutResource(rec); err != nil {
		return fmt.Errorf("failed to record resource %s: %w", name, err)
	}
	logger := log.WithComponent("secrets")
	logger.Info().
		Str("resource", name).
		Str("path", path).
		Msg("resource attached")
	return nil
}

// ResolveResource returns the filesystem path of an attached resource,
// failing with ResourceNotAttachedError when it is absent. On the first
// successful resolution the executable permission bits are set;
// subsequent calls are read-only.
func (s *Store) ResolveResource(name string) (string, error) {
	rec, err := s.store.GetResource(name)
	if storage.IsNotFound(err) {
		return "", &ResourceNotAttachedError{Name: name}
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up resource %s: %w", name, err)
	}

	if !rec.Executable {
		if err := os.Chmod(rec.Path, 0o755); err != nil {
			return "", fmt.Errorf("failed to mark resource %s executable: %w", name, err)
		}
		rec.Executable = true
		if err := s.store.PutResource(rec); err != nil {
			return "", fmt.Errorf("failed to update resource %s: %w", name, err)
		}
	}
	return rec.Path, nil
}

// LookupResource is the tolerant variant of ResolveResource: absence is
// reported as ok=false rather than an error.
func (s *Store) LookupResource(name string) (path string, ok bool, err error) {
	path, err = s.ResolveResource(name)
	if IsNotAttached(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}
