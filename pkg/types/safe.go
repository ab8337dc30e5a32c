package types

import (
	"time"

	"github.com/safe-mobile/safe-push/pkg/address"
)

// Safe is a multisig account tracked on this device
type Safe struct {
	Address   address.Address `json:"address"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
}

// OwnerKey is a locally held owner key. The private scalar is kept as two
// sealed Shamir shares and never persisted in the clear.
type OwnerKey struct {
	Address         address.Address `json:"address"`
	Name            string          `json:"name"`
	PrimaryShare    []byte          `json:"-"`
	SecondaryShare  []byte          `json:"-"`
	SealingProvider string          `json:"sealing_provider"`
	CreatedAt       time.Time       `json:"created_at"`
}
