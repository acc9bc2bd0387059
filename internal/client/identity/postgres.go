package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/secretvault/internal/common"
	"github.com/dmitrijs2005/secretvault/internal/dbx"
)

const uniqueViolation = "23505"

type PostgresAccounts struct {
	db dbx.DBTX
}

func NewPostgresAccounts(db dbx.DBTX) *PostgresAccounts {
	return &PostgresAccounts{db: db}
}

func (r *PostgresAccounts) Create(ctx context.Context, a *Account) (*Account, error) {
	query :=
		`INSERT INTO accounts (email, display_name, salt, verifier)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	out := *a
	err := r.db.QueryRowContext(ctx, query, a.Email, a.DisplayName, a.Salt, a.Verifier).
		Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("account %s: %w", a.Email, common.ErrAlreadyInUse)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}

func (r *PostgresAccounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query :=
		`SELECT id, email, display_name, salt, verifier, created_at FROM accounts
		 WHERE email = $1`

	a := &Account{}
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&a.ID, &a.Email, &a.DisplayName, &a.Salt, &a.Verifier, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresAccounts) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}
