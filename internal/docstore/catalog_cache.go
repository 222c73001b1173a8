package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LoadCatalog returns the cached catalog document and its version stamp.
func (s *Store) LoadCatalog(ctx context.Context) ([]byte, string, bool, error) {
	var data []byte
	var stamp string
	err := s.db.QueryRowContext(ctx, `SELECT data, stamp FROM catalog_cache WHERE slot = 1`).Scan(&data, &stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to load catalog cache: %w", err)
	}
	return data, stamp, true, nil
}

// SaveCatalog replaces the cached catalog.
func (s *Store) SaveCatalog(ctx context.Context, data []byte, stamp string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_cache (slot, stamp, data) VALUES (1, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET stamp = excluded.stamp, data = excluded.data
	`, stamp, data)
	if err != nil {
		return fmt.Errorf("failed to save catalog cache: %w", err)
	}
	return nil
}
