package friends

import (
	"context"

	"github.com/expensebook/expensebook/internal/server/models"
)

// Repository stores the friends a user keeps track of. Every method is scoped
// to an owner.
type Repository interface {
	Create(ctx context.Context, friend *models.Friend) (*models.Friend, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Friend, error)
	// FindByName returns the owner's friends whose full name contains name,
	// case-insensitively.
	FindByName(ctx context.Context, ownerID, name string) ([]models.Friend, error)
}
