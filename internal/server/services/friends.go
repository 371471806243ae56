package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/expensebook/expensebook/internal/common"
	"github.com/expensebook/expensebook/internal/server/models"
	"github.com/expensebook/expensebook/internal/server/repositories/repomanager"
)

type CreateFriendInput struct {
	FullName  string  `json:"fullname"`
	ContactNo string  `json:"contactNo"`
	Amount    float64 `json:"amount"`
}

// FriendService manages the friends of the authenticated user.
type FriendService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewFriendService(db *sql.DB, repomanager repomanager.RepositoryManager) *FriendService {
	return &FriendService{db: db, repomanager: repomanager}
}

func (s *FriendService) CreateFriend(ctx context.Context, ownerID string, in CreateFriendInput) (*models.Friend, error) {
	fullName := strings.TrimSpace(in.FullName)
	contact := strings.TrimSpace(in.ContactNo)
	if fullName == "" || contact == "" {
		return nil, fmt.Errorf("%w: fullname and contact number are required", common.ErrValidation)
	}
	if !isPhoneNumber(contact) {
		return nil, fmt.Errorf("%w: contact number must contain digits only", common.ErrValidation)
	}

	f, err := s.repomanager.Friends(s.db).Create(ctx, &models.Friend{
		OwnerID:   ownerID,
		FullName:  fullName,
		ContactNo: contact,
		Amount:    in.Amount,
	})
	if err != nil {
		return nil, fmt.Errorf("create friend: %w", err)
	}
	return f, nil
}

func (s *FriendService) ListFriends(ctx context.Context, ownerID string) ([]models.Friend, error) {
	list, err := s.repomanager.Friends(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return list, nil
}

// FindFriends looks up the owner's friends by a fragment of their name.
func (s *FriendService) FindFriends(ctx context.Context, ownerID, name string) ([]models.Friend, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: friend name is missing", common.ErrValidation)
	}

	list, err := s.repomanager.Friends(s.db).FindByName(ctx, ownerID, name)
	if err != nil {
		return nil, fmt.Errorf("find friends: %w", err)
	}
	return list, nil
}

// isPhoneNumber accepts digits with an optional leading '+'.
func isPhoneNumber(s string) bool {
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
