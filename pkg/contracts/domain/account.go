package domain

import "time"

// Account is a destination trading account owned by a user.
type Account struct {
	ID        string    `json:"id" db:"id" validate:"required,uuid"`
	UserID    string    `json:"user_id" db:"user_id" validate:"required"`
	Name      string    `json:"name" db:"name" validate:"required"`
	Currency  string    `json:"currency" db:"currency" validate:"required,len=3"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
