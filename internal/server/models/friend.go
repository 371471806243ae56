package models

import "time"

// Friend is a contact owned by a user, with the running balance between them.
type Friend struct {
	ID        string    `json:"_id"`
	OwnerID   string    `json:"owner"`
	FullName  string    `json:"fullname"`
	ContactNo string    `json:"contactNo"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
