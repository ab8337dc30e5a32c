package signer

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/safe-mobile/safe-push/internal/crypto"
	"github.com/safe-mobile/safe-push/internal/keystore"
	"github.com/safe-mobile/safe-push/internal/metrics"
	"github.com/safe-mobile/safe-push/pkg/address"
	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// TransactionSigner confirms Safe transactions with owner keys
type TransactionSigner struct {
	keys    keystore.KeyStore
	metrics *metrics.Metrics
}

// NewTransactionSigner creates a transaction signer backed by keys
func NewTransactionSigner(keys keystore.KeyStore, m *metrics.Metrics) *TransactionSigner {
	return &TransactionSigner{keys: keys, metrics: m}
}

// Sign signs expectedHash with key after checking that it is the
// Keccak-256 of encodedData. The key is not used when the hashes differ.
func Sign(ctx context.Context, encodedData []byte, expectedHash common.Hash, key keystore.SigningKey) ([]byte, error) {
	if key == nil {
		return nil, apperrors.ErrMissingPrivateKey
	}
	computed := crypto.Keccak256(encodedData)
	if !bytes.Equal(computed.Bytes(), expectedHash.Bytes()) {
		return nil, apperrors.ErrHashMismatch
	}
	return key.SignHash(ctx, expectedHash.Bytes())
}

// SignSafeTransaction confirms tx with the key of owner. The declared
// SafeTxHash must match the locally encoded transaction.
func (s *TransactionSigner) SignSafeTransaction(ctx context.Context, tx *types.SafeTransaction, owner address.Address) ([]byte, error) {
	key, err := s.keys.Key(ctx, owner)
	if err != nil {
		return nil, err
	}
	encoded, err := EncodeTransactionData(tx)
	if err != nil {
		return nil, err
	}
	sig, err := Sign(ctx, encoded, tx.SafeTxHash, key)
	if err != nil {
		return nil, err
	}
	s.metrics.Signatures(1)
	return sig, nil
}
