// Package auth issues and verifies session tokens and hashes passwords.
package auth

import (
	"fmt"
	"time"

	"github.com/expensebook/expensebook/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Identity is what an access token asserts about its bearer.
type Identity struct {
	UserID   string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullname"`
}

// AccessClaims are carried by access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	Identity
	TokenType string `json:"typ"`
}

// RefreshClaims are carried by refresh tokens; they only name the user.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"_id"`
	TokenType string `json:"typ"`
}

// TokenIssuer signs and verifies HS256 session tokens. Access and refresh
// tokens use separate secrets and lifetimes.
type TokenIssuer struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret string, accessTTL time.Duration, refreshSecret string, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		accessTTL:     accessTTL,
		refreshSecret: []byte(refreshSecret),
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// registered fills the standard claims. The random ID keeps two tokens issued
// for the same user within one second distinct.
func (i *TokenIssuer) registered(userID string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *TokenIssuer) IssueAccess(id Identity) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: i.registered(id.UserID, i.accessTTL),
		Identity:         id,
		TokenType:        tokenTypeAccess,
	}
	return sign(claims, i.accessSecret)
}

func (i *TokenIssuer) IssueRefresh(userID string) (string, error) {
	claims := RefreshClaims{
		RegisteredClaims: i.registered(userID, i.refreshTTL),
		UserID:           userID,
		TokenType:        tokenTypeRefresh,
	}
	return sign(claims, i.refreshSecret)
}

// VerifyAccess checks signature, expiry and token type. Every failure matches
// common.ErrInvalidToken.
func (i *TokenIssuer) VerifyAccess(token string) (Identity, error) {
	claims := &AccessClaims{}
	if err := parse(token, claims, i.accessSecret); err != nil {
		return Identity{}, err
	}
	if claims.TokenType != tokenTypeAccess || claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: not an access token", common.ErrInvalidToken)
	}
	return claims.Identity, nil
}

// VerifyRefresh returns the user ID named by a valid refresh token.
func (i *TokenIssuer) VerifyRefresh(token string) (string, error) {
	claims := &RefreshClaims{}
	if err := parse(token, claims, i.refreshSecret); err != nil {
		return "", err
	}
	if claims.TokenType != tokenTypeRefresh || claims.UserID == "" {
		return "", fmt.Errorf("%w: not a refresh token", common.ErrInvalidToken)
	}
	return claims.UserID, nil
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: sign token: %w", common.ErrorInternal, err)
	}
	return s, nil
}

func parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return common.ErrInvalidToken
	}
	return nil
}
