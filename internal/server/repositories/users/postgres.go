package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/expensebook/expensebook/internal/common"
	"github.com/expensebook/expensebook/internal/dbx"
	"github.com/expensebook/expensebook/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, username, email, fullname, password_hash, refresh_token, avatar, wallet, savings, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, fullname, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindByLogin(ctx context.Context, username, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		 ORDER BY created_at
		 LIMIT 1`

	return scanUser(r.db.QueryRowContext(ctx, query, username, email))
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	query :=
		`UPDATE users SET refresh_token = $2, updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, common.ErrorNotFound, query, id, token)
}

func (r *PostgresRepository) ClearRefreshToken(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET refresh_token = NULL, updated_at = now()
		 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, id, oldToken, newToken string) error {
	query :=
		`UPDATE users SET refresh_token = $3, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2`

	return r.execOne(ctx, common.ErrTokenMismatch, query, id, oldToken, newToken)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, common.ErrorNotFound, query, id, passwordHash)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	query :=
		`UPDATE users SET
		 username = COALESCE($2, username),
		 email = COALESCE($3, email),
		 fullname = COALESCE($4, fullname),
		 wallet = COALESCE($5, wallet),
		 savings = COALESCE($6, savings),
		 updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, id,
		nullable(upd.Username), nullable(upd.Email), nullable(upd.FullName),
		nullable(upd.Wallet), nullable(upd.Savings)))
}

func (r *PostgresRepository) SetAvatar(ctx context.Context, id, key string) error {
	query :=
		`UPDATE users SET avatar = $2, updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, common.ErrorNotFound, query, id, key)
}

// execOne runs a single-row update and returns noRows when nothing matched.
func (r *PostgresRepository) execOne(ctx context.Context, noRows error, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return noRows
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                    models.User
		refreshToken, avatar sql.NullString
		wallet, savings      sql.NullFloat64
	)

	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash,
		&refreshToken, &avatar, &wallet, &savings, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	u.RefreshToken = refreshToken.String
	u.Avatar = avatar.String
	if wallet.Valid {
		u.Wallet = &wallet.Float64
	}
	if savings.Valid {
		u.Savings = &savings.Float64
	}

	return &u, nil
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", common.ErrConflict, pgErr.ConstraintName)
	}

	return fmt.Errorf("db error: %w", err)
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
