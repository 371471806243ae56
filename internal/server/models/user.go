// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a stored account. PasswordHash and RefreshToken never leave the
// server; use View to build what is returned to clients.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	// RefreshToken is the only refresh token currently accepted for the user,
	// empty when logged out.
	RefreshToken string
	// Avatar is the object-storage key of the profile picture, if any.
	Avatar    string
	Wallet    *float64
	Savings   *float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserView is the sanitized projection of a User.
type UserView struct {
	ID        string    `json:"_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullname"`
	Avatar    string    `json:"avatar,omitempty"`
	Wallet    *float64  `json:"wallet,omitempty"`
	Savings   *float64  `json:"savings,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// View strips credentials from u.
func (u *User) View() *UserView {
	return &UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Avatar:    u.Avatar,
		Wallet:    u.Wallet,
		Savings:   u.Savings,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ProfileUpdate carries the profile fields a user may change. A nil field is
// left untouched.
type ProfileUpdate struct {
	Username *string  `json:"username"`
	Email    *string  `json:"email"`
	FullName *string  `json:"fullname"`
	Wallet   *float64 `json:"wallet"`
	Savings  *float64 `json:"savings"`
}

// Empty reports whether no field is set.
func (p ProfileUpdate) Empty() bool {
	return p.Username == nil && p.Email == nil && p.FullName == nil && p.Wallet == nil && p.Savings == nil
}
