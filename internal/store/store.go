package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// Count returns the number of rows in one of the cache tables.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if !slices.Contains(Tables, table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

// clearTable deletes every row of table, keeping the schema.
func (s *Store) clearTable(ctx context.Context, table string) error {
	return clearTable(ctx, s.db, table)
}

func clearTable(ctx context.Context, db execer, table string) error {
	if !slices.Contains(Tables, table) {
		return fmt.Errorf("unknown table %q", table)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	return nil
}

// ClearAll empties every table.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range Tables {
			if err := clearTable(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}
