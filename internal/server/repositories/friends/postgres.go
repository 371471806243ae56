package friends

import (
	"context"
	"fmt"
	"strings"

	"github.com/expensebook/expensebook/internal/dbx"
	"github.com/expensebook/expensebook/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.Friend) (*models.Friend, error) {
	query :=
		`INSERT INTO friends (owner_id, fullname, contact_no, amount)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, f.OwnerID, f.FullName, f.ContactNo, f.Amount).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return f, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Friend, error) {
	query :=
		`SELECT id, owner_id, fullname, contact_no, amount, created_at, updated_at
		 FROM friends
		 WHERE owner_id = $1
		 ORDER BY fullname`

	return r.query(ctx, query, ownerID)
}

func (r *PostgresRepository) FindByName(ctx context.Context, ownerID, name string) ([]models.Friend, error) {
	query :=
		`SELECT id, owner_id, fullname, contact_no, amount, created_at, updated_at
		 FROM friends
		 WHERE owner_id = $1 AND fullname ILIKE $2 ESCAPE '\'
		 ORDER BY fullname`

	return r.query(ctx, query, ownerID, "%"+escapeLike(name)+"%")
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]models.Friend, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Friend, 0)
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.FullName, &f.ContactNo, &f.Amount, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
