// Package services contains server-side business logic. This file implements
// UserService, the session manager: registration, login, logout, refresh
// token rotation and profile maintenance.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/expensebook/expensebook/internal/common"
	"github.com/expensebook/expensebook/internal/dbx"
	"github.com/expensebook/expensebook/internal/logging"
	"github.com/expensebook/expensebook/internal/server/auth"
	"github.com/expensebook/expensebook/internal/server/models"
	"github.com/expensebook/expensebook/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Tokens TokenPair
	User   *models.UserView
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// LoginInput identifies the user by username or email; at least one is needed.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// LoginLimiter throttles failed logins per identifier.
type LoginLimiter interface {
	Check(ctx context.Context, login string) error
	RecordFailure(ctx context.Context, login string) error
	Reset(ctx context.Context, login string) error
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      auth.PasswordHasher
	issuer      *auth.TokenIssuer
	limiter     LoginLimiter
	logger      logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

type UserServiceOption func(*UserService)

// WithLoginLimiter enables failed-login throttling.
func WithLoginLimiter(l LoginLimiter) UserServiceOption {
	return func(s *UserService) { s.limiter = l }
}

func WithLogger(l logging.Logger) UserServiceOption {
	return func(s *UserService) { s.logger = l }
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher auth.PasswordHasher,
	issuer *auth.TokenIssuer, opts ...UserServiceOption) *UserService {
	s := &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		issuer:      issuer,
		logger:      logging.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user. Username and email are normalized before the
// uniqueness check, which runs in the same transaction as the insert.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.UserView, error) {
	username := normalizeLogin(in.Username)
	email := normalizeLogin(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	if username == "" || email == "" || fullName == "" || strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: all fields are required", common.ErrValidation)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		_, err := repo.FindByLogin(ctx, username, email)
		switch {
		case err == nil:
			return fmt.Errorf("%w: user with email or username already exists", common.ErrConflict)
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		created, err = repo.Create(ctx, &models.User{
			Username:     username,
			Email:        email,
			FullName:     fullName,
			PasswordHash: hash,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return created.View(), nil
}

// Login verifies the password, issues a fresh token pair and stores the new
// refresh token, replacing any previous one.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := normalizeLogin(in.Username)
	email := normalizeLogin(in.Email)
	if username == "" && email == "" {
		return nil, fmt.Errorf("%w: username or email is required", common.ErrValidation)
	}

	login := username
	if login == "" {
		login = email
	}

	if err := s.checkLimiter(ctx, login); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByLogin(ctx, username, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnDummyVerify(in.Password)
			s.recordFailure(ctx, login)
			return nil, fmt.Errorf("%w: user does not exist", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.recordFailure(ctx, login)
		return nil, fmt.Errorf("%w: invalid user credentials", common.ErrorUnauthorized)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, login); err != nil {
			s.logger.Warn(ctx, "login limiter reset failed", "error", err)
		}
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	if err := repo.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return &LoginResult{Tokens: *pair, User: user.View()}, nil
}

// Logout forgets the stored refresh token. Calling it twice is harmless.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.repomanager.Users(s.db).ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// RefreshAccessToken exchanges a valid refresh token for a new pair. The old
// token stops working: the stored value is swapped only if it still equals the
// presented one, so of two concurrent refreshes with the same token exactly
// one succeeds.
func (s *UserService) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: refresh token is required", common.ErrorUnauthorized)
	}

	userID, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown user", common.ErrInvalidToken)
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		return nil, common.ErrTokenMismatch
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	if err := repo.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	return pair, nil
}

// ChangePassword replaces the password after checking the old one. Only the
// hash column is written.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(oldPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: old and new password are required", common.ErrValidation)
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return fmt.Errorf("%w: invalid old password", common.ErrorUnauthorized)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := repo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// UpdateProfile applies the supplied non-empty fields. Username and email are
// normalized; a username taken by someone else yields common.ErrConflict.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.UserView, error) {
	clean := models.ProfileUpdate{
		Username: normalizedField(upd.Username, normalizeLogin),
		Email:    normalizedField(upd.Email, normalizeLogin),
		FullName: normalizedField(upd.FullName, strings.TrimSpace),
		Wallet:   upd.Wallet,
		Savings:  upd.Savings,
	}
	if clean.Empty() {
		return nil, fmt.Errorf("%w: at least one field is required", common.ErrValidation)
	}

	user, err := s.repomanager.Users(s.db).UpdateProfile(ctx, userID, clean)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user.View(), nil
}

// CurrentUser returns the sanitized record of userID.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.UserView, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return user.View(), nil
}

// --- helpers below ---

func (s *UserService) issuePair(u *models.User) (*TokenPair, error) {
	access, err := s.issuer.IssueAccess(auth.Identity{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefresh(u.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// burnDummyVerify spends about as long as a real password check so that an
// unknown login is not distinguishable by response time.
func (s *UserService) burnDummyVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("expensebook-timing-equalizer")
	})
	if s.dummyHash != "" {
		_ = s.hasher.Verify(password, s.dummyHash)
	}
}

func (s *UserService) checkLimiter(ctx context.Context, login string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Check(ctx, login)
	if errors.Is(err, common.ErrTooManyAttempts) {
		return err
	}
	if err != nil {
		s.logger.Warn(ctx, "login limiter unavailable", "error", err)
	}
	return nil
}

func (s *UserService) recordFailure(ctx context.Context, login string) {
	if s.limiter == nil {
		return
	}
	err := s.limiter.RecordFailure(ctx, login)
	if err != nil && !errors.Is(err, common.ErrTooManyAttempts) {
		s.logger.Warn(ctx, "login limiter unavailable", "error", err)
	}
}

func normalizeLogin(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizedField(p *string, norm func(string) string) *string {
	if p == nil {
		return nil
	}
	v := norm(*p)
	if v == "" {
		return nil
	}
	return &v
}
