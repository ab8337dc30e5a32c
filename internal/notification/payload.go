// Package notification decodes push payloads and fans the resulting
// application events out to subscribers.
package notification

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/safe-mobile/safe-push/pkg/address"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// Kind classifies a received notification
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindIncoming     Kind = "incoming"
	KindQueued       Kind = "queued"
	KindUnknown      Kind = "unknown"
)

// Payload is the data part of a push message
type Payload struct {
	Address    string                 `json:"address"`
	SafeTxHash string                 `json:"safeTxHash"`
	Type       types.NotificationType `json:"type"`
}

// FromMap reads a payload from loosely typed push data. Non-string values
// are ignored.
func FromMap(data map[string]any) Payload {
	str := func(key string) string {
		s, _ := data[key].(string)
		return s
	}
	return Payload{
		Address:    str("address"),
		SafeTxHash: str("safeTxHash"),
		Type:       types.NotificationType(str("type")),
	}
}

// Parse decodes a JSON payload
func Parse(raw []byte) (Payload, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Payload{}, fmt.Errorf("invalid notification payload: %w", err)
	}
	return FromMap(data), nil
}

// SafeAddress returns the safe the notification is about
func (p Payload) SafeAddress() (address.Address, bool) {
	if p.Address == "" {
		return address.Zero, false
	}
	addr, err := address.Parse(p.Address)
	if err != nil {
		return address.Zero, false
	}
	return addr, true
}

// TxHash returns the safe transaction hash when it is exactly 32 bytes of hex
func (p Payload) TxHash() (common.Hash, bool) {
	if !strings.HasPrefix(p.SafeTxHash, "0x") && !strings.HasPrefix(p.SafeTxHash, "0X") {
		return common.Hash{}, false
	}
	b, err := hexutil.Decode(p.SafeTxHash)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}

// Classify decides which screen the notification leads to. A valid
// transaction hash wins over the type tag.
func (p Payload) Classify() Kind {
	if _, ok := p.TxHash(); ok {
		return KindConfirmation
	}
	switch {
	case p.Type.IsIncoming():
		return KindIncoming
	case p.Type.IsQueued():
		return KindQueued
	}
	return KindUnknown
}
