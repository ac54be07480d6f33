package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/dbx"
	"github.com/aliceout/nodea/internal/server/models"
	"github.com/aliceout/nodea/internal/wire"
)

// stateColumns whitelists the state fields that may reach SQL.
var stateColumns = map[string]string{
	wire.StateModules: "modules_state",
	wire.StatePrefs:   "prefs_state",
}

func stateColumn(field string) (string, error) {
	col, ok := stateColumns[field]
	if !ok {
		return "", fmt.Errorf("%w: unknown state field %q", common.ErrorValidation, field)
	}
	return col, nil
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, salt, master_key_verifier)
         VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Salt, user.Verifier).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	query :=
		`SELECT id, username, master_key_verifier, salt FROM users
		 WHERE username = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, userName).Scan(&user.ID, &user.UserName, &user.Verifier, &user.Salt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetState(ctx context.Context, userID, field string) (string, error) {
	col, err := stateColumn(field)
	if err != nil {
		return "", err
	}

	query := `SELECT ` + col + ` FROM users WHERE id = $1`

	var value string
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return value, nil
}

func (r *PostgresRepository) PutState(ctx context.Context, userID, field, value string) error {
	col, err := stateColumn(field)
	if err != nil {
		return err
	}

	query := `UPDATE users SET ` + col + ` = $1 WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, value, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
