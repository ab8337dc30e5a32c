// Package validation checks control API input before it reaches the
// registration and signing code.
package validation

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/safe-mobile/safe-push/pkg/types"
)

const (
	// MaxPushTokenLength bounds FCM/APNs tokens, which are a few hundred bytes
	MaxPushTokenLength = 4096
	// MaxNameLength bounds user-chosen key and safe names
	MaxNameLength = 100
	// MaxTransactionDataSize bounds calldata of a transaction to confirm
	MaxTransactionDataSize = 128 << 10
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ValidatePushToken checks a cloud messaging token
func ValidatePushToken(token string) error {
	if token == "" {
		return fmt.Errorf("push token cannot be empty")
	}
	if len(token) > MaxPushTokenLength {
		return fmt.Errorf("push token too long: %d bytes > %d bytes max", len(token), MaxPushTokenLength)
	}
	if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return fmt.Errorf("push token cannot contain whitespace")
	}
	return nil
}

// ValidateName checks an optional display name
func ValidateName(name string) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("name too long: %d characters > %d max", len(name), MaxNameLength)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return fmt.Errorf("name cannot contain control characters")
	}
	return nil
}

// ValidateUint256 checks that v fits an EVM uint256. nil is treated as zero.
func ValidateUint256(field string, v *big.Int) error {
	if v == nil {
		return nil
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%s cannot be negative", field)
	}
	if v.Cmp(maxUint256) > 0 {
		return fmt.Errorf("%s exceeds uint256", field)
	}
	return nil
}

// ValidateSafeTransaction checks a transaction submitted for confirmation
func ValidateSafeTransaction(tx *types.SafeTransaction) error {
	if tx == nil {
		return fmt.Errorf("safe transaction is required")
	}
	if tx.Safe.IsZero() {
		return fmt.Errorf("safe address is required")
	}
	if tx.SafeTxHash == ([32]byte{}) {
		return fmt.Errorf("safeTxHash is required")
	}
	if tx.Operation != types.OperationCall && tx.Operation != types.OperationDelegateCall {
		return fmt.Errorf("operation must be 0 (call) or 1 (delegate call), got %d", tx.Operation)
	}
	if len(tx.Data) > MaxTransactionDataSize {
		return fmt.Errorf("transaction data too large: %d bytes > %d bytes max", len(tx.Data), MaxTransactionDataSize)
	}

	numbers := []struct {
		field string
		value *big.Int
	}{
		{"chainId", types.BigOrNil(tx.ChainID)},
		{"value", types.BigOrNil(tx.Value)},
		{"safeTxGas", types.BigOrNil(tx.SafeTxGas)},
		{"baseGas", types.BigOrNil(tx.BaseGas)},
		{"gasPrice", types.BigOrNil(tx.GasPrice)},
		{"nonce", types.BigOrNil(tx.Nonce)},
	}
	for _, n := range numbers {
		if err := ValidateUint256(n.field, n.value); err != nil {
			return err
		}
	}
	return nil
}
