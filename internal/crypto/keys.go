package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/safe-mobile/safe-push/pkg/address"
)

// HashLength is the size of every hash signed by owner keys
const HashLength = common.HashLength

// SignatureLength is the size of an r||s||v signature
const SignatureLength = crypto.SignatureLength

// ecdsaRecoveryOffset shifts the recovery id to the 27/28 form expected by
// Safe contracts and the transaction service.
const ecdsaRecoveryOffset = 27

// GenerateKey generates a new secp256k1 owner key
func GenerateKey() (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return privateKey, nil
}

// AddressOf derives the owner address of a private key
func AddressOf(privateKey *ecdsa.PrivateKey) address.Address {
	return address.FromCommon(crypto.PubkeyToAddress(privateKey.PublicKey))
}

// PrivateKeyToBytes converts a private key to its 32-byte scalar
func PrivateKeyToBytes(privateKey *ecdsa.PrivateKey) []byte {
	return crypto.FromECDSA(privateKey)
}

// BytesToPrivateKey converts a 32-byte scalar to a private key
func BytesToPrivateKey(b []byte) (*ecdsa.PrivateKey, error) {
	return crypto.ToECDSA(b)
}

// HexToPrivateKey parses a hex private key, with or without 0x
func HexToPrivateKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// Keccak256 hashes data with the chain's 256-bit hash
func Keccak256(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}

// SignHash signs a 32-byte hash and returns r||s||v with v in {27, 28}
func SignHash(hash []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	if len(hash) != HashLength {
		return nil, fmt.Errorf("hash must be exactly %d bytes, got %d", HashLength, len(hash))
	}
	sig, err := crypto.Sign(hash, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += ecdsaRecoveryOffset
	return sig, nil
}

// RecoverSigner returns the address that produced sig over hash.
// It accepts v in either {0, 1} or {27, 28}.
func RecoverSigner(hash, sig []byte) (address.Address, error) {
	if len(sig) != SignatureLength {
		return address.Zero, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= ecdsaRecoveryOffset {
		normalized[crypto.RecoveryIDOffset] -= ecdsaRecoveryOffset
	}
	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return address.Zero, fmt.Errorf("failed to recover public key: %w", err)
	}
	return address.FromCommon(crypto.PubkeyToAddress(*pub)), nil
}

// ZeroKey overwrites the private scalar
func ZeroKey(privateKey *ecdsa.PrivateKey) {
	if privateKey != nil && privateKey.D != nil {
		privateKey.D.SetInt64(0)
	}
}

// ZeroBytes overwrites b with zeros
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
