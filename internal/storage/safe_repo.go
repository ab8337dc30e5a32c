package storage

import (
	"context"
	"fmt"

	"github.com/safe-mobile/safe-push/pkg/address"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// SafePgRepository handles safe persistence
type SafePgRepository struct {
	store *Store
}

// NewSafeRepository creates a new safe repository
func NewSafeRepository(store *Store) *SafePgRepository {
	return &SafePgRepository{store: store}
}

// Add inserts a safe, updating its name if it already exists
func (r *SafePgRepository) Add(ctx context.Context, safe *types.Safe) error {
	query := `
		INSERT INTO safes (address, name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address) DO UPDATE SET name = EXCLUDED.name
		RETURNING created_at
	`
	if err := r.store.db.QueryRow(ctx, query, addressKey(safe.Address), safe.Name).Scan(&safe.CreatedAt); err != nil {
		return fmt.Errorf("failed to add safe: %w", err)
	}
	return nil
}

// Remove deletes a safe
func (r *SafePgRepository) Remove(ctx context.Context, addr address.Address) (bool, error) {
	tag, err := r.store.db.Exec(ctx, `DELETE FROM safes WHERE address = $1`, addressKey(addr))
	if err != nil {
		return false, fmt.Errorf("failed to remove safe: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// All lists safes in insertion order
func (r *SafePgRepository) All(ctx context.Context) ([]*types.Safe, error) {
	rows, err := r.store.db.Query(ctx, `SELECT address, name, created_at FROM safes ORDER BY created_at, address`)
	if err != nil {
		return nil, fmt.Errorf("failed to list safes: %w", err)
	}
	defer rows.Close()

	var safes []*types.Safe
	for rows.Next() {
		var raw string
		safe := &types.Safe{}
		if err := rows.Scan(&raw, &safe.Name, &safe.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan safe: %w", err)
		}
		safe.Address, err = address.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("stored safe address %q: %w", raw, err)
		}
		safes = append(safes, safe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate safes: %w", err)
	}
	return safes, nil
}

// Exists reports whether a safe is tracked
func (r *SafePgRepository) Exists(ctx context.Context, addr address.Address) (bool, error) {
	var exists bool
	err := r.store.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM safes WHERE address = $1)`, addressKey(addr)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check safe: %w", err)
	}
	return exists, nil
}

var _ SafeRepository = (*SafePgRepository)(nil)
