package models

import "time"

// User is an account. The server only knows the argon2 salt and the
// verifier derived from the client's master key, never the key itself.
type User struct {
	ID        string
	UserName  string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}
