package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/safe-mobile/safe-push/pkg/types"
)

// StatePgRepository stores device state as key/value rows
type StatePgRepository struct {
	store *Store
}

// NewStateRepository creates a new device state repository
func NewStateRepository(store *Store) *StatePgRepository {
	return &StatePgRepository{store: store}
}

func (r *StatePgRepository) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.store.db.QueryRow(ctx, `SELECT value FROM device_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (r *StatePgRepository) set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO device_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.store.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// DeviceID returns the install's device identifier
func (r *StatePgRepository) DeviceID(ctx context.Context) (string, bool, error) {
	return r.get(ctx, StateDeviceID)
}

// SetDeviceID stores the install's device identifier
func (r *StatePgRepository) SetDeviceID(ctx context.Context, id string) error {
	return r.set(ctx, StateDeviceID, id)
}

// PushToken returns the last push token issued by the platform
func (r *StatePgRepository) PushToken(ctx context.Context) (string, bool, error) {
	return r.get(ctx, StatePushToken)
}

// SetPushToken stores the push token
func (r *StatePgRepository) SetPushToken(ctx context.Context, token string) error {
	return r.set(ctx, StatePushToken, token)
}

// AuthorizationStatus returns the last recorded permission status
func (r *StatePgRepository) AuthorizationStatus(ctx context.Context) (types.AuthorizationStatus, bool, error) {
	v, ok, err := r.get(ctx, StateAuthorizationStatus)
	return types.AuthorizationStatus(v), ok, err
}

// SetAuthorizationStatus records the permission status
func (r *StatePgRepository) SetAuthorizationStatus(ctx context.Context, status types.AuthorizationStatus) error {
	return r.set(ctx, StateAuthorizationStatus, string(status))
}

var _ StateRepository = (*StatePgRepository)(nil)
