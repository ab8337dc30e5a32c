package validation

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-mobile/safe-push/pkg/address"
	"github.com/safe-mobile/safe-push/pkg/types"
)

func TestValidatePushToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr string
	}{
		{"fcm token", "dGVzdA:APA91bHun4MxP5egoKMwt2KZFBaFUH-1RYqx", ""},
		{"empty", "", "cannot be empty"},
		{"whitespace", "abc def", "whitespace"},
		{"too long", strings.Repeat("a", MaxPushTokenLength+1), "too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePushToken(tt.token)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName(""))
	assert.NoError(t, ValidateName("Treasury"))
	assert.Error(t, ValidateName(strings.Repeat("x", MaxNameLength+1)))
	assert.Error(t, ValidateName("bad\x00name"))
}

func TestValidateUint256(t *testing.T) {
	assert.NoError(t, ValidateUint256("value", nil))
	assert.NoError(t, ValidateUint256("value", big.NewInt(0)))
	assert.NoError(t, ValidateUint256("value", new(big.Int).Set(maxUint256)))

	err := ValidateUint256("value", big.NewInt(-1))
	assert.ErrorContains(t, err, "value cannot be negative")

	err = ValidateUint256("nonce", new(big.Int).Add(maxUint256, big.NewInt(1)))
	assert.ErrorContains(t, err, "nonce exceeds uint256")
}

func TestValidateSafeTransaction(t *testing.T) {
	valid := func() *types.SafeTransaction {
		return &types.SafeTransaction{
			Safe:       address.MustParse("0x1230b3d59858296a31053c1b8562ecf89a2f888b"),
			ChainID:    (*math.HexOrDecimal256)(big.NewInt(1)),
			Value:      (*math.HexOrDecimal256)(big.NewInt(1)),
			Nonce:      (*math.HexOrDecimal256)(big.NewInt(0)),
			SafeTxHash: common.HexToHash("0x01"),
		}
	}

	tests := []struct {
		name    string
		mutate  func(tx *types.SafeTransaction)
		wantErr string
	}{
		{"valid", func(tx *types.SafeTransaction) {}, ""},
		{"missing safe", func(tx *types.SafeTransaction) { tx.Safe = address.Zero }, "safe address is required"},
		{"missing hash", func(tx *types.SafeTransaction) { tx.SafeTxHash = common.Hash{} }, "safeTxHash is required"},
		{"bad operation", func(tx *types.SafeTransaction) { tx.Operation = 2 }, "operation must be"},
		{"negative value", func(tx *types.SafeTransaction) {
			tx.Value = (*math.HexOrDecimal256)(big.NewInt(-5))
		}, "value cannot be negative"},
		{"large data", func(tx *types.SafeTransaction) {
			tx.Data = make([]byte, MaxTransactionDataSize+1)
		}, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid()
			tt.mutate(tx)
			err := ValidateSafeTransaction(tx)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.Error(t, ValidateSafeTransaction(nil))
}
