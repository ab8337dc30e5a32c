package signer

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	version "github.com/hashicorp/go-version"

	"github.com/safe-mobile/safe-push/internal/crypto"
	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
	"github.com/safe-mobile/safe-push/pkg/types"
)

const safeTxPrimaryType = "SafeTx"

// Safe contracts before 1.3.0 left the chain id out of the domain
var chainIDDomainSince = version.Must(version.NewVersion("1.3.0"))

var safeTxFields = []apitypes.Type{
	{Name: "to", Type: "address"},
	{Name: "value", Type: "uint256"},
	{Name: "data", Type: "bytes"},
	{Name: "operation", Type: "uint8"},
	{Name: "safeTxGas", Type: "uint256"},
	{Name: "baseGas", Type: "uint256"},
	{Name: "gasPrice", Type: "uint256"},
	{Name: "gasToken", Type: "address"},
	{Name: "refundReceiver", Type: "address"},
	{Name: "nonce", Type: "uint256"},
}

// EncodeTransactionData returns the EIP-712 encoding of tx,
// 0x19 0x01 || domainSeparator || hashStruct(SafeTx). Its Keccak-256 is the
// safeTxHash.
func EncodeTransactionData(tx *types.SafeTransaction) ([]byte, error) {
	td, err := safeTxTypedData(tx)
	if err != nil {
		return nil, err
	}

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash safe transaction: %w", err)
	}

	encoded := make([]byte, 0, 2+2*crypto.HashLength)
	encoded = append(encoded, 0x19, 0x01)
	encoded = append(encoded, domainSeparator...)
	encoded = append(encoded, structHash...)
	return encoded, nil
}

// SafeTxHash is the Keccak-256 of EncodeTransactionData
func SafeTxHash(tx *types.SafeTransaction) ([]byte, error) {
	encoded, err := EncodeTransactionData(tx)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded).Bytes(), nil
}

func safeTxTypedData(tx *types.SafeTransaction) (*apitypes.TypedData, error) {
	if tx == nil {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid safe transaction", "transaction is required", 400)
	}
	if tx.Safe.IsZero() {
		return nil, apperrors.InvalidAddress(tx.Safe.Checksummed())
	}

	domainFields := []apitypes.Type{{Name: "verifyingContract", Type: "address"}}
	domain := apitypes.TypedDataDomain{VerifyingContract: tx.Safe.Checksummed()}

	withChainID, err := domainHasChainID(tx.SafeVersion)
	if err != nil {
		return nil, err
	}
	if withChainID {
		if tx.ChainID == nil {
			return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid safe transaction",
				fmt.Sprintf("chain id is required for safe version %s", tx.SafeVersion), 400)
		}
		domainFields = []apitypes.Type{
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		}
		domain.ChainId = tx.ChainID
	}

	data := []byte(tx.Data)
	if data == nil {
		data = []byte{}
	}

	return &apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":    domainFields,
			safeTxPrimaryType: safeTxFields,
		},
		PrimaryType: safeTxPrimaryType,
		Domain:      domain,
		Message: apitypes.TypedDataMessage{
			"to":             tx.To.Checksummed(),
			"value":          types.BigOrZero(tx.Value),
			"data":           data,
			"operation":      big.NewInt(int64(tx.Operation)),
			"safeTxGas":      types.BigOrZero(tx.SafeTxGas),
			"baseGas":        types.BigOrZero(tx.BaseGas),
			"gasPrice":       types.BigOrZero(tx.GasPrice),
			"gasToken":       tx.GasToken.Checksummed(),
			"refundReceiver": tx.RefundReceiver.Checksummed(),
			"nonce":          types.BigOrZero(tx.Nonce),
		},
	}, nil
}

func domainHasChainID(safeVersion string) (bool, error) {
	if safeVersion == "" {
		return true, nil
	}
	v, err := version.NewVersion(safeVersion)
	if err != nil {
		return false, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid safe version", err.Error(), 400)
	}
	return v.Core().GreaterThanOrEqual(chainIDDomainSince), nil
}
