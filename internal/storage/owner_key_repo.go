package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/safe-mobile/safe-push/pkg/address"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// OwnerKeyPgRepository handles sealed owner key persistence
type OwnerKeyPgRepository struct {
	store *Store
}

// NewOwnerKeyRepository creates a new owner key repository
func NewOwnerKeyRepository(store *Store) *OwnerKeyPgRepository {
	return &OwnerKeyPgRepository{store: store}
}

// Put inserts or replaces an owner key
func (r *OwnerKeyPgRepository) Put(ctx context.Context, key *types.OwnerKey) error {
	query := `
		INSERT INTO owner_keys (address, name, primary_share, secondary_share, sealing_provider, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (address) DO UPDATE SET
			name = EXCLUDED.name,
			primary_share = EXCLUDED.primary_share,
			secondary_share = EXCLUDED.secondary_share,
			sealing_provider = EXCLUDED.sealing_provider
		RETURNING created_at
	`
	err := r.store.db.QueryRow(ctx, query,
		addressKey(key.Address),
		key.Name,
		key.PrimaryShare,
		key.SecondaryShare,
		key.SealingProvider,
	).Scan(&key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store owner key: %w", err)
	}
	return nil
}

// Get retrieves an owner key by address
func (r *OwnerKeyPgRepository) Get(ctx context.Context, addr address.Address) (*types.OwnerKey, error) {
	query := `
		SELECT address, name, primary_share, secondary_share, sealing_provider, created_at
		FROM owner_keys
		WHERE address = $1
	`
	key, err := scanOwnerKey(r.store.db.QueryRow(ctx, query, addressKey(addr)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owner key: %w", err)
	}
	return key, nil
}

// Delete removes an owner key
func (r *OwnerKeyPgRepository) Delete(ctx context.Context, addr address.Address) (bool, error) {
	tag, err := r.store.db.Exec(ctx, `DELETE FROM owner_keys WHERE address = $1`, addressKey(addr))
	if err != nil {
		return false, fmt.Errorf("failed to delete owner key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns all owner keys ordered by address
func (r *OwnerKeyPgRepository) List(ctx context.Context) ([]*types.OwnerKey, error) {
	query := `
		SELECT address, name, primary_share, secondary_share, sealing_provider, created_at
		FROM owner_keys
		ORDER BY address
	`
	rows, err := r.store.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner keys: %w", err)
	}
	defer rows.Close()

	var keys []*types.OwnerKey
	for rows.Next() {
		key, err := scanOwnerKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan owner key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate owner keys: %w", err)
	}
	return keys, nil
}

func scanOwnerKey(row pgx.Row) (*types.OwnerKey, error) {
	var raw string
	key := &types.OwnerKey{}
	if err := row.Scan(&raw, &key.Name, &key.PrimaryShare, &key.SecondaryShare, &key.SealingProvider, &key.CreatedAt); err != nil {
		return nil, err
	}
	addr, err := address.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("stored owner address %q: %w", raw, err)
	}
	key.Address = addr
	return key, nil
}

var _ KeyRepository = (*OwnerKeyPgRepository)(nil)
