// Package keystore holds the owner keys that sign device registrations and
// multisig transactions.
package keystore

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"sort"
	"sync"

	"github.com/safe-mobile/safe-push/internal/crypto"
	"github.com/safe-mobile/safe-push/internal/storage"
	"github.com/safe-mobile/safe-push/pkg/address"
	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// SigningKey produces an ECDSA signature over a 32-byte hash on behalf of
// exactly one owner address.
type SigningKey interface {
	Address() address.Address
	// SignHash returns r||s||v with v in {27, 28}
	SignHash(ctx context.Context, hash []byte) ([]byte, error)
}

// KeyStore enumerates and resolves owner keys.
type KeyStore interface {
	// Keys returns every available key sorted by address
	Keys(ctx context.Context) ([]SigningKey, error)
	// Key returns apperrors.ErrMissingPrivateKey when addr has no key
	Key(ctx context.Context, addr address.Address) (SigningKey, error)
}

// ChangeFunc is called after a key is added or removed
type ChangeFunc func(ctx context.Context)

// Store keeps owner keys split into two Shamir shares, each sealed
// separately, in a storage.KeyRepository.
type Store struct {
	repo   storage.KeyRepository
	sealer Sealer

	mu       sync.RWMutex
	onChange []ChangeFunc
}

// New creates a key store
func New(repo storage.KeyRepository, sealer Sealer) *Store {
	return &Store{repo: repo, sealer: sealer}
}

// OnChange registers fn to run after Import, Generate and Delete
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Store) changed(ctx context.Context) {
	s.mu.RLock()
	hooks := append([]ChangeFunc(nil), s.onChange...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}

// Import stores a hex private key under name and returns its address
func (s *Store) Import(ctx context.Context, privateKeyHex, name string) (address.Address, error) {
	key, err := crypto.HexToPrivateKey(privateKeyHex)
	if err != nil {
		return address.Zero, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid private key", err.Error(), 400)
	}
	defer crypto.ZeroKey(key)
	return s.put(ctx, key, name)
}

// Generate creates and stores a new owner key
func (s *Store) Generate(ctx context.Context, name string) (address.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return address.Zero, err
	}
	defer crypto.ZeroKey(key)
	return s.put(ctx, key, name)
}

func (s *Store) put(ctx context.Context, key *ecdsa.PrivateKey, name string) (address.Address, error) {
	addr := crypto.AddressOf(key)

	scalar := crypto.PrivateKeyToBytes(key)
	defer crypto.ZeroBytes(scalar)

	shares, err := crypto.SplitOwnerKey(scalar)
	if err != nil {
		return address.Zero, err
	}
	primary, err := s.sealer.Seal(ctx, shares.Primary)
	if err != nil {
		return address.Zero, fmt.Errorf("failed to seal primary share: %w", err)
	}
	secondary, err := s.sealer.Seal(ctx, shares.Secondary)
	if err != nil {
		return address.Zero, fmt.Errorf("failed to seal secondary share: %w", err)
	}

	err = s.repo.Put(ctx, &types.OwnerKey{
		Address:         addr,
		Name:            name,
		PrimaryShare:    primary,
		SecondaryShare:  secondary,
		SealingProvider: s.sealer.Provider(),
	})
	if err != nil {
		return address.Zero, err
	}

	s.changed(ctx)
	return addr, nil
}

// Delete removes the key for addr
func (s *Store) Delete(ctx context.Context, addr address.Address) error {
	deleted, err := s.repo.Delete(ctx, addr)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.ErrMissingPrivateKey
	}
	s.changed(ctx)
	return nil
}

// Keys returns handles to every stored key, sorted by address bytes
func (s *Store) Keys(ctx context.Context) ([]SigningKey, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].Address.Bytes(), records[j].Address.Bytes()) < 0
	})

	keys := make([]SigningKey, 0, len(records))
	for _, rec := range records {
		keys = append(keys, &storedKey{addr: rec.Address, store: s})
	}
	return keys, nil
}

// Key returns a handle to the key for addr
func (s *Store) Key(ctx context.Context, addr address.Address) (SigningKey, error) {
	rec, err := s.repo.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.ErrMissingPrivateKey
	}
	return &storedKey{addr: addr, store: s}, nil
}

// Addresses lists the owner addresses with a stored key
func (s *Store) Addresses(ctx context.Context) ([]address.Address, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	addrs := make([]address.Address, len(keys))
	for i, k := range keys {
		addrs[i] = k.Address()
	}
	return addrs, nil
}

// unlock rebuilds the private key for addr. The caller must zero it.
func (s *Store) unlock(ctx context.Context, addr address.Address) (*ecdsa.PrivateKey, error) {
	rec, err := s.repo.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.ErrMissingPrivateKey
	}

	primary, err := s.sealer.Unseal(ctx, rec.PrimaryShare)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal primary share: %w", err)
	}
	defer crypto.ZeroBytes(primary)
	secondary, err := s.sealer.Unseal(ctx, rec.SecondaryShare)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal secondary share: %w", err)
	}
	defer crypto.ZeroBytes(secondary)

	scalar, err := crypto.JoinOwnerKey(&crypto.KeyShares{Primary: primary, Secondary: secondary})
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(scalar)

	key, err := crypto.BytesToPrivateKey(scalar)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to private key: %w", err)
	}
	if crypto.AddressOf(key) != addr {
		crypto.ZeroKey(key)
		return nil, fmt.Errorf("stored key does not match address %s", addr)
	}
	return key, nil
}

// storedKey resolves its material on every signature, so a key deleted
// after enumeration fails with ErrMissingPrivateKey.
type storedKey struct {
	addr  address.Address
	store *Store
}

func (k *storedKey) Address() address.Address {
	return k.addr
}

func (k *storedKey) SignHash(ctx context.Context, hash []byte) ([]byte, error) {
	key, err := k.store.unlock(ctx, k.addr)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroKey(key)
	return crypto.SignHash(hash, key)
}

// PrivateKey is an in-memory SigningKey
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// NewPrivateKey wraps an ECDSA key
func NewPrivateKey(key *ecdsa.PrivateKey) *PrivateKey {
	return &PrivateKey{key: key}
}

// Address returns the owner address
func (k *PrivateKey) Address() address.Address {
	return crypto.AddressOf(k.key)
}

// SignHash signs a 32-byte hash
func (k *PrivateKey) SignHash(ctx context.Context, hash []byte) ([]byte, error) {
	return crypto.SignHash(hash, k.key)
}

var (
	_ KeyStore   = (*Store)(nil)
	_ SigningKey = (*storedKey)(nil)
	_ SigningKey = (*PrivateKey)(nil)
)
