package keystore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-mobile/safe-push/internal/crypto"
	"github.com/safe-mobile/safe-push/internal/storage/boltstore"
	"github.com/safe-mobile/safe-push/pkg/address"
	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
)

const hardhatKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := boltstore.Open(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sealer, err := NewLocalSealer(testMasterKeyHex)
	require.NoError(t, err)
	return New(db.Keys(), sealer)
}

func TestStore_ImportAndSign(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	addr, err := store.Import(ctx, hardhatKey, "hardhat #0")
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", addr.Checksummed())

	key, err := store.Key(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, addr, key.Address())

	hash := crypto.Keccak256([]byte("payload"))
	sig, err := key.SignHash(ctx, hash.Bytes())
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)
	assert.Contains(t, []byte{27, 28}, sig[64])

	signer, err := crypto.RecoverSigner(hash.Bytes(), sig)
	require.NoError(t, err)
	assert.Equal(t, addr, signer)
}

func TestStore_ImportInvalidKey(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Import(context.Background(), "0x1234", "short")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestStore_KeysSortedByAddress(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := store.Generate(ctx, "")
		require.NoError(t, err)
	}

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 5)
	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1].Address().Hex(), keys[i].Address().Hex())
	}

	addrs, err := store.Addresses(ctx)
	require.NoError(t, err)
	for i, k := range keys {
		assert.Equal(t, k.Address(), addrs[i])
	}
}

func TestStore_MissingKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Key(ctx, address.MustParse("0x0000000000000000000000000000000000000001"))
	assert.ErrorIs(t, err, apperrors.ErrMissingPrivateKey)

	err = store.Delete(ctx, address.MustParse("0x0000000000000000000000000000000000000001"))
	assert.ErrorIs(t, err, apperrors.ErrMissingPrivateKey)
}

func TestStore_DeletedKeyCannotSign(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	addr, err := store.Import(ctx, hardhatKey, "")
	require.NoError(t, err)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, store.Delete(ctx, addr))

	_, err = keys[0].SignHash(ctx, make([]byte, 32))
	assert.ErrorIs(t, err, apperrors.ErrMissingPrivateKey)
}

func TestStore_OnChange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	calls := 0
	store.OnChange(func(context.Context) { calls++ })

	addr, err := store.Import(ctx, hardhatKey, "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	require.NoError(t, store.Delete(ctx, addr))
	assert.Equal(t, 2, calls)

	// a failed delete changes nothing
	assert.Error(t, store.Delete(ctx, addr))
	assert.Equal(t, 2, calls)
}

func TestPrivateKey(t *testing.T) {
	priv, err := crypto.HexToPrivateKey(hardhatKey)
	require.NoError(t, err)

	key := NewPrivateKey(priv)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", key.Address().Checksummed())

	_, err = key.SignHash(context.Background(), []byte("too short"))
	assert.Error(t, err)
}
