package signer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-mobile/safe-push/internal/crypto"
	"github.com/safe-mobile/safe-push/internal/keystore"
	"github.com/safe-mobile/safe-push/pkg/address"
	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
	"github.com/safe-mobile/safe-push/pkg/types"
)

const hardhatKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// fakeKey records the hashes it is asked to sign
type fakeKey struct {
	addr address.Address
	sig  []byte
	err  error

	mu     sync.Mutex
	hashes [][]byte
}

func (k *fakeKey) Address() address.Address { return k.addr }

func (k *fakeKey) SignHash(ctx context.Context, hash []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.hashes = append(k.hashes, hash)
	if k.err != nil {
		return nil, k.err
	}
	return k.sig, nil
}

func (k *fakeKey) calls() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.hashes)
}

var (
	addrLower = address.MustParse("0xa000000000000000000000000000000000000002")
	addrUpper = address.MustParse("0xa000000000000000000000000000000000000003")
)

func stringPtr(s string) *string { return &s }

func TestPreimage(t *testing.T) {
	got := Preimage("1000", "D1", "T1", address.SortedChecksummed([]address.Address{addrLower, addrUpper}))
	assert.Equal(t,
		"gnosis-safe1000d1T1"+
			"0xA000000000000000000000000000000000000003"+
			"0xa000000000000000000000000000000000000002",
		got)
}

func TestBuildAndSign_GoldenVector(t *testing.T) {
	s := NewRegistrationSigner()
	key := &fakeKey{addr: addrLower, sig: make([]byte, 65)}

	for _, addrs := range [][]address.Address{
		{addrLower, addrUpper},
		{addrUpper, addrLower},
	} {
		signed, err := s.BuildAndSign(context.Background(), addrs, "D1", "T1", []keystore.SigningKey{key}, stringPtr("1000"))
		require.NoError(t, err)
		require.NotNil(t, signed)

		assert.Equal(t, "1000", signed.Timestamp)
		assert.Equal(t, "0x990864c7914768cf50b787f11086774cbb2804e2c752ab010b20fa9b349f1f76", signed.Hash)
		assert.Equal(t, "gnosis-safe1000d1T10xA0000000000000000000000000000000000000030xa000000000000000000000000000000000000002", signed.Preimage)
	}
}

func TestBuildAndSign_NoSafes(t *testing.T) {
	s := NewRegistrationSigner()
	key := &fakeKey{addr: addrLower, sig: make([]byte, 65)}

	signed, err := s.BuildAndSign(context.Background(), nil, "D1", "T1", []keystore.SigningKey{key}, stringPtr("1000"))
	require.NoError(t, err)
	assert.Equal(t, "gnosis-safe1000d1T1", signed.Preimage)
	assert.Equal(t, "0x460d843c2ff3943912a3ed6eca2c673ed21cf475bc8fbc1094be130628443d2c", signed.Hash)
}

func TestBuildAndSign_NoKeys(t *testing.T) {
	s := NewRegistrationSigner()

	signed, err := s.BuildAndSign(context.Background(), []address.Address{addrLower}, "D1", "T1", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, signed)

	req := BuildRequest(types.AppInfo{Bundle: "io.gnosis.multisig", Version: "1.0", BuildNumber: "7"},
		types.DeviceTypeIOS, "D1", "T1", []address.Address{addrLower}, signed)
	assert.Equal(t, "d1", req.UUID)
	assert.Equal(t, []string{"0xa000000000000000000000000000000000000002"}, req.Safes)
	assert.Equal(t, "T1", req.CloudMessagingToken)
	assert.Equal(t, "io.gnosis.multisig", req.Bundle)
	assert.Nil(t, req.Timestamp)
	assert.Nil(t, req.Signatures)
}

func TestBuildAndSign_DefaultTimestamp(t *testing.T) {
	s := NewRegistrationSigner(WithClock(func() time.Time { return time.Unix(1700000000, 999) }))
	key := &fakeKey{addr: addrLower, sig: make([]byte, 65)}

	signed, err := s.BuildAndSign(context.Background(), nil, "D1", "T1", []keystore.SigningKey{key}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1700000000", signed.Timestamp)
	assert.Equal(t, "gnosis-safe1700000000d1T1", signed.Preimage)
}

func TestBuildAndSign_SignatureOrderFollowsKeys(t *testing.T) {
	s := NewRegistrationSigner()
	// enumeration order deliberately differs from address order
	first := &fakeKey{addr: addrUpper, sig: []byte{0x01}}
	second := &fakeKey{addr: addrLower, sig: []byte{0x02}}

	signed, err := s.BuildAndSign(context.Background(), nil, "D1", "T1", []keystore.SigningKey{first, second}, stringPtr("1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0x01", "0x02"}, signed.Signatures)

	req := BuildRequest(types.AppInfo{}, "", "D1", "T1", nil, signed)
	require.NotNil(t, req.Timestamp)
	assert.Equal(t, "1", *req.Timestamp)
	assert.Equal(t, signed.Signatures, req.Signatures)
}

func TestBuildAndSign_AllOrNothing(t *testing.T) {
	s := NewRegistrationSigner()
	cause := errors.New("keychain locked")
	good := &fakeKey{addr: addrLower, sig: []byte{0x01}}
	bad := &fakeKey{addr: addrUpper, err: cause}

	signed, err := s.BuildAndSign(context.Background(), nil, "D1", "T1", []keystore.SigningKey{good, bad}, stringPtr("1"))
	assert.Nil(t, signed)
	assert.ErrorIs(t, err, apperrors.ErrSigningFailure)
	assert.ErrorIs(t, err, cause)
}

func TestBuildAndSign_RealKeyRecovers(t *testing.T) {
	priv, err := crypto.HexToPrivateKey(hardhatKey)
	require.NoError(t, err)
	key := keystore.NewPrivateKey(priv)

	signed, err := NewRegistrationSigner().BuildAndSign(context.Background(),
		[]address.Address{addrLower, addrUpper}, "D1", "T1", []keystore.SigningKey{key}, stringPtr("1000"))
	require.NoError(t, err)
	require.Len(t, signed.Signatures, 1)

	sig, err := decodeHex(signed.Signatures[0])
	require.NoError(t, err)
	hash, err := decodeHex(signed.Hash)
	require.NoError(t, err)

	recovered, err := crypto.RecoverSigner(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, key.Address(), recovered)
}
