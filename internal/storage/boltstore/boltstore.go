// Package boltstore is the embedded on-device storage backend, keeping
// device state, safes and sealed owner keys in a single bbolt file.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/safe-mobile/safe-push/internal/storage"
	"github.com/safe-mobile/safe-push/pkg/address"
	"github.com/safe-mobile/safe-push/pkg/types"
)

var (
	stateBucketKey = []byte("DeviceState")
	safeBucketKey  = []byte("Safes")
	keyBucketKey   = []byte("OwnerKeys")
)

// Store is a bbolt-backed storage.Backend
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens or creates the database file at path
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{stateBucketKey, safeBucketKey, keyBucketKey} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database file
func (s *Store) Close() error {
	return s.db.Close()
}

// States returns the device state repository
func (s *Store) States() storage.StateRepository { return &stateRepo{s} }

// Safes returns the safe repository
func (s *Store) Safes() storage.SafeRepository { return &safeRepo{s} }

// Keys returns the owner key repository
func (s *Store) Keys() storage.KeyRepository { return &keyRepo{s} }

var _ storage.Backend = (*Store)(nil)

type stateRepo struct{ s *Store }

func (r *stateRepo) get(key string) (string, bool, error) {
	var value []byte
	err := r.s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(stateBucketKey).Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(value), value != nil, nil
}

func (r *stateRepo) set(key, value string) error {
	err := r.s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucketKey).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (r *stateRepo) DeviceID(ctx context.Context) (string, bool, error) {
	return r.get(storage.StateDeviceID)
}

func (r *stateRepo) SetDeviceID(ctx context.Context, id string) error {
	return r.set(storage.StateDeviceID, id)
}

func (r *stateRepo) PushToken(ctx context.Context) (string, bool, error) {
	return r.get(storage.StatePushToken)
}

func (r *stateRepo) SetPushToken(ctx context.Context, token string) error {
	return r.set(storage.StatePushToken, token)
}

func (r *stateRepo) AuthorizationStatus(ctx context.Context) (types.AuthorizationStatus, bool, error) {
	v, ok, err := r.get(storage.StateAuthorizationStatus)
	return types.AuthorizationStatus(v), ok, err
}

func (r *stateRepo) SetAuthorizationStatus(ctx context.Context, status types.AuthorizationStatus) error {
	return r.set(storage.StateAuthorizationStatus, string(status))
}

type safeRepo struct{ s *Store }

func (r *safeRepo) Add(ctx context.Context, safe *types.Safe) error {
	key := []byte(safe.Address.Hex())
	return r.s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(safeBucketKey)
		if row := b.Get(key); row != nil {
			var existing types.Safe
			if err := json.Unmarshal(row, &existing); err != nil {
				return fmt.Errorf("failed to decode safe: %w", err)
			}
			safe.CreatedAt = existing.CreatedAt
		} else {
			safe.CreatedAt = r.s.now().UTC()
		}

		row, err := json.Marshal(safe)
		if err != nil {
			return err
		}
		return b.Put(key, row)
	})
}

func (r *safeRepo) Remove(ctx context.Context, addr address.Address) (bool, error) {
	var removed bool
	err := r.s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(safeBucketKey)
		key := []byte(addr.Hex())
		if b.Get(key) == nil {
			return nil
		}
		removed = true
		return b.Delete(key)
	})
	return removed, err
}

func (r *safeRepo) All(ctx context.Context) ([]*types.Safe, error) {
	var safes []*types.Safe
	err := r.s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(safeBucketKey).ForEach(func(k, v []byte) error {
			safe := &types.Safe{}
			if err := json.Unmarshal(v, safe); err != nil {
				return fmt.Errorf("failed to decode safe %s: %w", k, err)
			}
			safes = append(safes, safe)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(safes, func(i, j int) bool {
		return safes[i].CreatedAt.Before(safes[j].CreatedAt)
	})
	return safes, nil
}

func (r *safeRepo) Exists(ctx context.Context, addr address.Address) (bool, error) {
	var exists bool
	err := r.s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(safeBucketKey).Get([]byte(addr.Hex())) != nil
		return nil
	})
	return exists, err
}

// ownerKeyRecord is the on-disk form of types.OwnerKey, which hides its
// shares from JSON.
type ownerKeyRecord struct {
	Address         address.Address `json:"address"`
	Name            string          `json:"name"`
	PrimaryShare    []byte          `json:"primary_share"`
	SecondaryShare  []byte          `json:"secondary_share"`
	SealingProvider string          `json:"sealing_provider"`
	CreatedAt       time.Time       `json:"created_at"`
}

type keyRepo struct{ s *Store }

func (r *keyRepo) Put(ctx context.Context, key *types.OwnerKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = r.s.now().UTC()
	}
	row, err := json.Marshal(ownerKeyRecord(*key))
	if err != nil {
		return err
	}
	return r.s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(keyBucketKey).Put([]byte(key.Address.Hex()), row)
	})
}

func (r *keyRepo) Get(ctx context.Context, addr address.Address) (*types.OwnerKey, error) {
	var key *types.OwnerKey
	err := r.s.db.View(func(tx *bolt.Tx) error {
		row := tx.Bucket(keyBucketKey).Get([]byte(addr.Hex()))
		if row == nil {
			return nil
		}
		var err error
		key, err = decodeOwnerKey(row)
		return err
	})
	return key, err
}

func (r *keyRepo) Delete(ctx context.Context, addr address.Address) (bool, error) {
	var deleted bool
	err := r.s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(keyBucketKey)
		key := []byte(addr.Hex())
		if b.Get(key) == nil {
			return nil
		}
		deleted = true
		return b.Delete(key)
	})
	return deleted, err
}

// List returns keys in address order; bolt iterates keys sorted by bytes.
func (r *keyRepo) List(ctx context.Context) ([]*types.OwnerKey, error) {
	var keys []*types.OwnerKey
	err := r.s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(keyBucketKey).ForEach(func(k, v []byte) error {
			key, err := decodeOwnerKey(v)
			if err != nil {
				return err
			}
			keys = append(keys, key)
			return nil
		})
	})
	return keys, err
}

func decodeOwnerKey(row []byte) (*types.OwnerKey, error) {
	var rec ownerKeyRecord
	if err := json.Unmarshal(row, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode owner key: %w", err)
	}
	key := types.OwnerKey(rec)
	return &key, nil
}
