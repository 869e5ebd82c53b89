package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/hutch/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketMarkers   = []byte("markers")
	bucketRelation  = []byte("relation")
	bucketSecrets   = []byte("secrets")
	bucketResources = []byte("resources")
	bucketStatus    = []byte("status")

	// Fixed keys inside the relation bucket
	keyRelationState    = []byte("state")
	keyRelationSnapshot = []byte("snapshot")
)

// BoltStore implements Store using BoltDB. The database file lives in
// the unit's state directory and is opened with owner-only permissions
// because it holds encrypted secrets.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the unit state database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "hutch.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketMarkers,
			bucketRelation,
			bucketSecrets,
			bucketResources,
			bucketStatus,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Marker operations
func (s *BoltStore) PutMarker(marker *types.AppliedStateMarker) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMarkers)
		data, err := json.Marshal(marker)
		if err != nil {
			return err
		}
		return b.Put([]byte(marker.Service), data)
	})
}

func (s *BoltStore) GetMarker(service string) (*types.AppliedStateMarker, error) {
	var marker types.AppliedStateMarker
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMarkers)
		data := b.Get([]byte(service))
		if data == nil {
			return &ErrNotFound{Kind: "marker", Key: service}
		}
		return json.Unmarshal(data, &marker)
	})
	if err != nil {
		return nil, err
	}
	return &marker, nil
}

// Relation operations
func (s *BoltStore) PutRelationState(state string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRelation).Put(keyRelationState, []byte(state))
	})
}

func (s *BoltStore) GetRelationState() (string, error) {
	var state string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRelation).Get(keyRelationState)
		if data == nil {
			return &ErrNotFound{Kind: "relation state", Key: string(keyRelationState)}
		}
		state = string(data)
		return nil
	})
	return state, err
}

func (s *BoltStore) PutRelationSnapshot(snap *types.RelationSnapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketRelation).Put(keyRelationSnapshot, data)
	})
}

func (s *BoltStore) GetRelationSnapshot() (*types.RelationSnapshot, error) {
	var snap types.RelationSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRelation).Get(keyRelationSnapshot)
		if data == nil {
			return &ErrNotFound{Kind: "relation snapshot", Key: string(keyRelationSnapshot)}
		}
		return json.Unmarshal(data, &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *BoltStore) DeleteRelationSnapshot() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRelation).Delete(keyRelationSnapshot)
	})
}

// Secret operations
func (s *BoltStore) PutSecret(secret *types.Secret) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSecrets)
		data, err := json.Marshal(secret)
		if err != nil {
			return err
		}
		return b.Put([]byte(secret.Handle), data)
	})
}

func (s *BoltStore) GetSecret(handle string) (*types.Secret, error) {
	var secret types.Secret
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSecrets)
		data := b.Get([]byte(handle))
		if data == nil {
			return &ErrNotFound{Kind: "secret", Key: handle}
		}
		return json.Unmarshal(data, &secret)
	})
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

func (s *BoltStore) DeleteSecret(handle string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).Delete([]byte(handle))
	})
}

func (s *BoltStore) DeleteSecretsByKind(kind types.SecretKind) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSecrets)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var secret types.Secret
			if err := json.Unmarshal(v, &secret); err != nil {
				return err
			}
			if secret.Kind == kind {
				key := make([]byte, len(k))
				copy(key, k)
				stale = append(stale, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Resource operations
func (s *BoltStore) PutResource(rec *ResourceRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResources)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.Name), data)
	})
}

func (s *BoltStore) GetResource(name string) (*ResourceRecord, error) {
	var rec ResourceRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResources)
		data := b.Get([]byte(name))
		if data == nil {
			return &ErrNotFound{Kind: "resource", Key: name}
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) DeleteResource(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResources).Delete([]byte(name))
	})
}

// Status operations
func (s *BoltStore) PutStatus(key string, status types.Status) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(status)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStatus).Put([]byte(key), data)
	})
}

func (s *BoltStore) GetStatus(key string) (types.Status, error) {
	var status types.Status
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketStatus).Get([]byte(key))
		if data == nil {
			return &ErrNotFound{Kind: "status", Key: key}
		}
		return json.Unmarshal(data, &status)
	})
	return status, err
}
