package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/expensebook/expensebook/internal/common"
	"github.com/expensebook/expensebook/internal/dbx"
	"github.com/expensebook/expensebook/internal/server/models"
	friendsrepo "github.com/expensebook/expensebook/internal/server/repositories/friends"
	usersrepo "github.com/expensebook/expensebook/internal/server/repositories/users"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// fakeUsersRepo is an in-memory users.Repository with the same semantics as
// the PostgreSQL one, including the conditional refresh token swap.
type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	nextID int

	// failWith, when set, is returned by every method.
	failWith error
	// writes counts column writes per method, to check partial updates.
	writes map[string]int
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}, writes: map[string]int{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, existing := range f.byID {
		if existing.Username == u.Username {
			return nil, fmt.Errorf("%w: users_username_idx", common.ErrConflict)
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("u-%d", f.nextID)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	f.byID[u.ID] = &cp
	f.writes["Create"]++
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) FindByLogin(ctx context.Context, username, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.byID {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) SetRefreshToken(ctx context.Context, id, token string) error {
	return f.update(id, "SetRefreshToken", func(u *models.User) error {
		u.RefreshToken = token
		return nil
	})
}

func (f *fakeUsersRepo) ClearRefreshToken(ctx context.Context, id string) error {
	err := f.update(id, "ClearRefreshToken", func(u *models.User) error {
		u.RefreshToken = ""
		return nil
	})
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	return err
}

func (f *fakeUsersRepo) RotateRefreshToken(ctx context.Context, id, oldToken, newToken string) error {
	err := f.update(id, "RotateRefreshToken", func(u *models.User) error {
		if u.RefreshToken != oldToken {
			return common.ErrTokenMismatch
		}
		u.RefreshToken = newToken
		return nil
	})
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrTokenMismatch
	}
	return err
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return f.update(id, "UpdatePassword", func(u *models.User) error {
		u.PasswordHash = hash
		return nil
	})
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	var out models.User
	err := f.update(id, "UpdateProfile", func(u *models.User) error {
		if upd.Username != nil {
			for otherID, other := range f.byID {
				if otherID != id && other.Username == *upd.Username {
					return fmt.Errorf("%w: users_username_idx", common.ErrConflict)
				}
			}
			u.Username = *upd.Username
		}
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		if upd.FullName != nil {
			u.FullName = *upd.FullName
		}
		if upd.Wallet != nil {
			u.Wallet = upd.Wallet
		}
		if upd.Savings != nil {
			u.Savings = upd.Savings
		}
		out = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *fakeUsersRepo) SetAvatar(ctx context.Context, id, key string) error {
	return f.update(id, "SetAvatar", func(u *models.User) error {
		u.Avatar = key
		return nil
	})
}

func (f *fakeUsersRepo) update(id, method string, fn func(u *models.User) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now()
	f.writes[method]++
	return nil
}

func (f *fakeUsersRepo) stored(t *testing.T, id string) models.User {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		t.Fatalf("user %s not stored", id)
	}
	return *u
}

type fakeFriendsRepo struct {
	mu      sync.Mutex
	friends []models.Friend
	err     error
}

func (f *fakeFriendsRepo) Create(ctx context.Context, fr *models.Friend) (*models.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	fr.ID = fmt.Sprintf("f-%d", len(f.friends)+1)
	f.friends = append(f.friends, *fr)
	return fr, nil
}

func (f *fakeFriendsRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Friend, error) {
	return f.filter(ownerID, func(models.Friend) bool { return true })
}

func (f *fakeFriendsRepo) FindByName(ctx context.Context, ownerID, name string) ([]models.Friend, error) {
	return f.filter(ownerID, func(fr models.Friend) bool {
		return strings.Contains(strings.ToLower(fr.FullName), strings.ToLower(name))
	})
}

func (f *fakeFriendsRepo) filter(ownerID string, keep func(models.Friend) bool) ([]models.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Friend, 0)
	for _, fr := range f.friends {
		if fr.OwnerID == ownerID && keep(fr) {
			out = append(out, fr)
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	f *fakeFriendsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *fakeRepoManager) Friends(db dbx.DBTX) friendsrepo.Repository   { return m.f }

// fakeLimiter counts failures in memory.
type fakeLimiter struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
	resets   int
	checkErr error
}

func newFakeLimiter(max int) *fakeLimiter {
	return &fakeLimiter{max: max, failures: map[string]int{}}
}

func (l *fakeLimiter) Check(ctx context.Context, login string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.checkErr != nil {
		return l.checkErr
	}
	if l.failures[login] >= l.max {
		return common.ErrTooManyAttempts
	}
	return nil
}

func (l *fakeLimiter) RecordFailure(ctx context.Context, login string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[login]++
	if l.failures[login] >= l.max {
		return common.ErrTooManyAttempts
	}
	return nil
}

func (l *fakeLimiter) Reset(ctx context.Context, login string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, login)
	l.resets++
	return nil
}
