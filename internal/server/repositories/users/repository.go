package users

import (
	"context"

	"github.com/expensebook/expensebook/internal/server/models"
)

// Repository is the credential store. Every write touches only the columns it
// names, so an unrelated update never rewrites the password hash or the
// refresh token.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// FindByLogin returns the first user whose username or email matches.
	// An empty argument is not matched.
	FindByLogin(ctx context.Context, username, email string) (*models.User, error)

	SetRefreshToken(ctx context.Context, id, token string) error
	ClearRefreshToken(ctx context.Context, id string) error
	// RotateRefreshToken replaces oldToken with newToken only if oldToken is
	// still the stored value; otherwise it returns common.ErrTokenMismatch.
	RotateRefreshToken(ctx context.Context, id, oldToken, newToken string) error

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	SetAvatar(ctx context.Context, id, key string) error
}
