package models

// Account represents a user-defined grouping of wallet addresses
type Account struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"userId" db:"user_id"`
	Name   string `json:"name" db:"name"`
}
