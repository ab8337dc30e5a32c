package storage

import (
	"context"

	"github.com/safe-mobile/safe-push/pkg/address"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// Keys of the device state values
const (
	StateDeviceID            = "device_id"
	StatePushToken           = "push_token"
	StateAuthorizationStatus = "authorization_status"
)

// StateRepository persists the process-wide push registration values.
// The bool result is false when the value was never written.
type StateRepository interface {
	DeviceID(ctx context.Context) (string, bool, error)
	SetDeviceID(ctx context.Context, id string) error
	PushToken(ctx context.Context) (string, bool, error)
	SetPushToken(ctx context.Context, token string) error
	AuthorizationStatus(ctx context.Context) (types.AuthorizationStatus, bool, error)
	SetAuthorizationStatus(ctx context.Context, status types.AuthorizationStatus) error
}

// SafeRepository persists the safes tracked on this device
type SafeRepository interface {
	Add(ctx context.Context, safe *types.Safe) error
	// Remove reports whether a safe was deleted
	Remove(ctx context.Context, addr address.Address) (bool, error)
	All(ctx context.Context) ([]*types.Safe, error)
	Exists(ctx context.Context, addr address.Address) (bool, error)
}

// KeyRepository persists sealed owner keys
type KeyRepository interface {
	Put(ctx context.Context, key *types.OwnerKey) error
	// Get returns nil, nil when the key does not exist
	Get(ctx context.Context, addr address.Address) (*types.OwnerKey, error)
	// Delete reports whether a key was deleted
	Delete(ctx context.Context, addr address.Address) (bool, error)
	List(ctx context.Context) ([]*types.OwnerKey, error)
}

// Backend bundles the repositories of one storage engine
type Backend interface {
	States() StateRepository
	Safes() SafeRepository
	Keys() KeyRepository
	Close() error
}

// addressKey is the canonical storage key of an address
func addressKey(addr address.Address) string {
	return addr.Hex()
}
