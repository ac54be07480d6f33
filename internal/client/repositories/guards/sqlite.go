package guards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aliceout/nodea/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, collection, recordID string) (string, error) {
	var guard string
	err := r.db.QueryRowContext(ctx,
		`SELECT guard FROM guards WHERE collection = ? AND record_id = ?`, collection, recordID).Scan(&guard)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get guard %s/%s: %w", collection, recordID, err)
	}
	return guard, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, collection, recordID, guard string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guards (collection, record_id, guard) VALUES (?, ?, ?)
		ON CONFLICT(collection, record_id) DO UPDATE SET guard = excluded.guard
	`, collection, recordID, guard)
	if err != nil {
		return fmt.Errorf("failed to put guard %s/%s: %w", collection, recordID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, collection, recordID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM guards WHERE collection = ? AND record_id = ?`, collection, recordID)
	if err != nil {
		return fmt.Errorf("failed to delete guard %s/%s: %w", collection, recordID, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM guards`); err != nil {
		return fmt.Errorf("failed to clear guards: %w", err)
	}
	return nil
}
