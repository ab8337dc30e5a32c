package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-mobile/safe-push/migrations"
	"github.com/safe-mobile/safe-push/pkg/address"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// openTestStore connects to TEST_POSTGRES_DSN and resets the schema.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	store, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = Migrate(ctx, store.Pool(), migrations.FS, MigrateUp, 0)
	require.NoError(t, err)

	_, err = store.Pool().Exec(ctx, `TRUNCATE device_state, safes, owner_keys`)
	require.NoError(t, err)

	return store
}

func TestAddressKey(t *testing.T) {
	a := address.MustParse("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", addressKey(a))
}

func TestPostgres_StateRepository(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	states := store.States()

	_, ok, err := states.DeviceID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, states.SetDeviceID(ctx, "device-1"))
	id, ok, err := states.DeviceID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "device-1", id)

	require.NoError(t, states.SetPushToken(ctx, "t1"))
	require.NoError(t, states.SetPushToken(ctx, "t2"))
	token, ok, err := states.PushToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "t2", token)

	_, ok, err = states.AuthorizationStatus(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, states.SetAuthorizationStatus(ctx, types.AuthorizationDenied))
	status, ok, err := states.AuthorizationStatus(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.AuthorizationDenied, status)
}

func TestPostgres_SafeRepository(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	safes := store.Safes()

	a := address.MustParse("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	b := address.MustParse("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")

	require.NoError(t, safes.Add(ctx, &types.Safe{Address: a, Name: "Treasury"}))
	require.NoError(t, safes.Add(ctx, &types.Safe{Address: b, Name: "Ops"}))
	require.NoError(t, safes.Add(ctx, &types.Safe{Address: a, Name: "Treasury 2"}))

	all, err := safes.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	exists, err := safes.Exists(ctx, a)
	require.NoError(t, err)
	assert.True(t, exists)

	removed, err := safes.Remove(ctx, a)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = safes.Remove(ctx, a)
	require.NoError(t, err)
	assert.False(t, removed)

	exists, err = safes.Exists(ctx, a)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPostgres_OwnerKeyRepository(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	keys := store.Keys()

	addr := address.MustParse("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	missing, err := keys.Get(ctx, addr)
	require.NoError(t, err)
	assert.Nil(t, missing)

	key := &types.OwnerKey{
		Address:         addr,
		Name:            "Owner",
		PrimaryShare:    []byte{1, 2, 3},
		SecondaryShare:  []byte{4, 5, 6},
		SealingProvider: "local",
	}
	require.NoError(t, keys.Put(ctx, key))
	assert.False(t, key.CreatedAt.IsZero())

	got, err := keys.Get(ctx, addr)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, addr, got.Address)
	assert.Equal(t, []byte{1, 2, 3}, got.PrimaryShare)

	list, err := keys.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	deleted, err := keys.Delete(ctx, addr)
	require.NoError(t, err)
	assert.True(t, deleted)
}
