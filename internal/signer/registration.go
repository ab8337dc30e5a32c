// Package signer produces the signatures the transaction service expects:
// device registration signatures and Safe transaction confirmations.
package signer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/safe-mobile/safe-push/internal/crypto"
	"github.com/safe-mobile/safe-push/internal/keystore"
	"github.com/safe-mobile/safe-push/internal/metrics"
	"github.com/safe-mobile/safe-push/pkg/address"
	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// registrationPrefix domain-separates registration preimages
const registrationPrefix = "gnosis-safe"

// RegistrationSigner signs the association between a device, a push token
// and a set of safes.
type RegistrationSigner struct {
	now     func() time.Time
	metrics *metrics.Metrics
}

// Option configures a RegistrationSigner
type Option func(*RegistrationSigner)

// WithClock overrides the time source used for default timestamps
func WithClock(now func() time.Time) Option {
	return func(s *RegistrationSigner) {
		s.now = now
	}
}

// WithMetrics counts produced signatures
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RegistrationSigner) {
		s.metrics = m
	}
}

// NewRegistrationSigner creates a registration signer
func NewRegistrationSigner(opts ...Option) *RegistrationSigner {
	s := &RegistrationSigner{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preimage returns the string hashed for a registration.
// safes must already be checksummed and sorted.
func Preimage(timestamp, deviceID, token string, safes []string) string {
	var b strings.Builder
	b.WriteString(registrationPrefix)
	b.WriteString(timestamp)
	b.WriteString(strings.ToLower(deviceID))
	b.WriteString(token)
	for _, s := range safes {
		b.WriteString(s)
	}
	return b.String()
}

// BuildAndSign signs a registration of addresses for deviceID and token with
// every key, in the order given. It returns nil when keys is empty. When
// timestamp is nil the current Unix time in seconds is used.
//
// Signing is all-or-nothing: if any key fails, no signatures are returned.
func (s *RegistrationSigner) BuildAndSign(ctx context.Context, addresses []address.Address, deviceID, token string, keys []keystore.SigningKey, timestamp *string) (*types.SignedRegistration, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ts := strconv.FormatInt(s.now().Unix(), 10)
	if timestamp != nil {
		ts = *timestamp
	}

	preimage := Preimage(ts, deviceID, token, address.SortedChecksummed(addresses))
	hash := crypto.Keccak256([]byte(preimage))

	signatures := make([]string, 0, len(keys))
	for _, key := range keys {
		sig, err := key.SignHash(ctx, hash.Bytes())
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrSigningFailure, err)
		}
		signatures = append(signatures, hexutil.Encode(sig))
	}
	s.metrics.Signatures(len(signatures))

	return &types.SignedRegistration{
		Preimage:   preimage,
		Hash:       hash.Hex(),
		Timestamp:  ts,
		Signatures: signatures,
	}, nil
}

// BuildRequest assembles the registration body. The device id is sent in
// lowercase, as in the preimage. Timestamp and signatures are left out when
// signed is nil.
func BuildRequest(app types.AppInfo, deviceType, deviceID, token string, addresses []address.Address, signed *types.SignedRegistration) *types.RegistrationRequest {
	req := &types.RegistrationRequest{
		UUID:                strings.ToLower(deviceID),
		Safes:               address.SortedChecksummed(addresses),
		CloudMessagingToken: token,
		Bundle:              app.Bundle,
		Version:             app.Version,
		BuildNumber:         app.BuildNumber,
		DeviceType:          deviceType,
	}
	if signed != nil {
		ts := signed.Timestamp
		req.Timestamp = &ts
		req.Signatures = signed.Signatures
	}
	return req
}
