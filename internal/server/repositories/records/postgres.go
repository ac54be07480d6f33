package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/dbx"
	"github.com/aliceout/nodea/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (id, collection, module_user_id, payload, cipher_iv, guard)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created, updated
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.ID, rec.Collection, rec.ModuleUserID, rec.Payload, rec.CipherIV, rec.Guard,
	).Scan(&rec.Created, &rec.Updated)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, collection, id string) (*models.Record, error) {
	query := `
		SELECT id, collection, module_user_id, payload, cipher_iv, guard, created, updated
		FROM records
		WHERE collection = $1 AND id = $2
	`
	rec := &models.Record{}
	err := r.db.QueryRowContext(ctx, query, collection, id).Scan(
		&rec.ID, &rec.Collection, &rec.ModuleUserID, &rec.Payload, &rec.CipherIV, &rec.Guard, &rec.Created, &rec.Updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) List(ctx context.Context, collection, moduleUserID string, limit, offset int) ([]*models.Record, int, error) {
	var total int
	countQuery := `SELECT count(*) FROM records WHERE collection = $1 AND module_user_id = $2`
	if err := r.db.QueryRowContext(ctx, countQuery, collection, moduleUserID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	query := `
		SELECT id, collection, module_user_id, payload, cipher_iv, guard, created, updated
		FROM records
		WHERE collection = $1 AND module_user_id = $2
		ORDER BY created, id
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, query, collection, moduleUserID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Record, 0, limit)
	for rows.Next() {
		rec := &models.Record{}
		if err := rows.Scan(&rec.ID, &rec.Collection, &rec.ModuleUserID, &rec.Payload, &rec.CipherIV, &rec.Guard, &rec.Created, &rec.Updated); err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return items, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.Record, expectedGuard string) error {
	query := `
		UPDATE records
		SET payload = $1, cipher_iv = $2, guard = $3, updated = now()
		WHERE collection = $4 AND id = $5 AND guard = $6
		RETURNING updated
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.Payload, rec.CipherIV, rec.Guard, rec.Collection, rec.ID, expectedGuard,
	).Scan(&rec.Updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, collection, id, expectedGuard string) error {
	query := `DELETE FROM records WHERE collection = $1 AND id = $2 AND guard = $3`
	res, err := r.db.ExecContext(ctx, query, collection, id, expectedGuard)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrVersionConflict
	}
	return nil
}
