package models

import "time"

// RefreshToken is a single-use token row. The token itself is never
// stored, only its hash.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	Expires   time.Time
	CreatedAt time.Time
}
