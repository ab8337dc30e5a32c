// Package address provides the 20-byte account identifier used for safes and
// owner keys, with its EIP-55 checksummed and lowercase textual forms.
package address

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
)

// Address is an Ethereum-style account identifier. Two addresses are equal
// iff their raw bytes are equal.
type Address struct {
	raw common.Address
}

// Zero is the all-zero address.
var Zero = Address{}

// FromCommon converts a go-ethereum address.
func FromCommon(a common.Address) Address {
	return Address{raw: a}
}

// FromBytes builds an address from exactly 20 bytes.
func FromBytes(b []byte) (Address, error) {
	if len(b) != common.AddressLength {
		return Zero, apperrors.InvalidAddress(hex.EncodeToString(b))
	}
	return Address{raw: common.BytesToAddress(b)}, nil
}

// Parse accepts a 40 hex digit address with or without the 0x prefix in any
// letter case. The EIP-55 checksum of mixed-case input is not enforced.
func Parse(s string) (Address, error) {
	v := strings.TrimSpace(s)
	if !common.IsHexAddress(v) {
		return Zero, apperrors.InvalidAddress(s)
	}
	return Address{raw: common.HexToAddress(v)}, nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseERC681 accepts an EIP-681 payment URI such as
// "ethereum:pay-0xAbC...@1/transfer?value=1" as well as a plain address.
func ParseERC681(s string) (Address, error) {
	v := strings.TrimSpace(s)
	v = strings.Replace(v, "ethereum:pay-", "", 1)
	v = strings.Replace(v, "ethereum:", "", 1)
	v = strings.TrimPrefix(v, "0x")

	end := 0
	for end < len(v) && isHexDigit(v[end]) {
		end++
	}
	return Parse("0x" + v[:end])
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// Checksummed returns the EIP-55 mixed-case form with the 0x prefix.
func (a Address) Checksummed() string {
	return a.raw.Hex()
}

// Hex returns the lowercase form with the 0x prefix.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a.raw[:])
}

// Bytes returns a copy of the raw 20 bytes.
func (a Address) Bytes() []byte {
	return a.raw.Bytes()
}

// Common returns the go-ethereum representation.
func (a Address) Common() common.Address {
	return a.raw
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Zero
}

func (a Address) String() string {
	return a.Checksummed()
}

// MarshalJSON encodes the checksummed form.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Checksummed())
}

// UnmarshalJSON accepts any form Parse accepts.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// SortedChecksummed maps addresses to their checksummed strings and sorts
// them with plain string ordering. The input is treated as a set: the same
// address given twice appears once.
//
// Verifiers recompute the registration hash from this exact list, so the sort
// must stay lexicographic over the mixed-case strings rather than numeric.
func SortedChecksummed(addrs []Address) []string {
	seen := make(map[Address]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a.Checksummed())
	}
	sort.Strings(out)
	return out
}
