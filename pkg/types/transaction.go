package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/safe-mobile/safe-push/pkg/address"
)

// Operation is the Safe call type
type Operation uint8

const (
	OperationCall         Operation = 0
	OperationDelegateCall Operation = 1
)

// SafeTransaction is a multisig transaction proposed to a Safe, together with
// the hash the service declares for it.
type SafeTransaction struct {
	Safe        address.Address       `json:"safe"`
	ChainID     *math.HexOrDecimal256 `json:"chainId"`
	SafeVersion string                `json:"safeVersion"`

	To             address.Address       `json:"to"`
	Value          *math.HexOrDecimal256 `json:"value"`
	Data           hexutil.Bytes         `json:"data"`
	Operation      Operation             `json:"operation"`
	SafeTxGas      *math.HexOrDecimal256 `json:"safeTxGas"`
	BaseGas        *math.HexOrDecimal256 `json:"baseGas"`
	GasPrice       *math.HexOrDecimal256 `json:"gasPrice"`
	GasToken       address.Address       `json:"gasToken"`
	RefundReceiver address.Address       `json:"refundReceiver"`
	Nonce          *math.HexOrDecimal256 `json:"nonce"`

	SafeTxHash common.Hash `json:"safeTxHash"`
}

// BigOrZero returns v as *big.Int, treating nil as zero
func BigOrZero(v *math.HexOrDecimal256) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return (*big.Int)(v)
}

// BigOrNil returns v as *big.Int, keeping nil
func BigOrNil(v *math.HexOrDecimal256) *big.Int {
	return (*big.Int)(v)
}
