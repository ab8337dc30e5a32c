package crypto

import (
	"fmt"

	"github.com/hashicorp/vault/shamir"
)

const (
	// KeyShareThreshold is the number of shares needed to rebuild an owner key
	KeyShareThreshold = 2
	// KeyShareCount is the number of shares an owner key is split into
	KeyShareCount = 2

	// minShareLength is a 32-byte scalar plus the one-byte share tag
	minShareLength = 33
)

// KeyShares is an owner key split 2-of-2. Each share is sealed separately
// before it is written to the key repository.
type KeyShares struct {
	Primary   []byte
	Secondary []byte
}

// SplitOwnerKey splits a private key scalar into two shares
func SplitOwnerKey(key []byte) (*KeyShares, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("key cannot be empty")
	}

	shares, err := shamir.Split(key, KeyShareCount, KeyShareThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split key: %w", err)
	}

	return &KeyShares{
		Primary:   shares[0],
		Secondary: shares[1],
	}, nil
}

// JoinOwnerKey rebuilds the private key scalar from both shares
func JoinOwnerKey(shares *KeyShares) ([]byte, error) {
	if shares == nil {
		return nil, fmt.Errorf("shares are required")
	}
	if err := ValidateShare(shares.Primary); err != nil {
		return nil, fmt.Errorf("primary share: %w", err)
	}
	if err := ValidateShare(shares.Secondary); err != nil {
		return nil, fmt.Errorf("secondary share: %w", err)
	}

	key, err := shamir.Combine([][]byte{shares.Primary, shares.Secondary})
	if err != nil {
		return nil, fmt.Errorf("failed to combine shares: %w", err)
	}
	return key, nil
}

// ValidateShare checks the share format only, not its cryptographic validity
func ValidateShare(share []byte) error {
	if len(share) == 0 {
		return fmt.Errorf("share cannot be empty")
	}
	if len(share) < minShareLength {
		return fmt.Errorf("share too short: expected at least %d bytes, got %d", minShareLength, len(share))
	}
	return nil
}
