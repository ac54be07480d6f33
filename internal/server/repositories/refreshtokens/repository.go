// Package refreshtokens stores refresh tokens for the session rotation.
// Only a SHA-256 hash of each token is kept, so a dump of the table cannot
// be replayed against the API.
package refreshtokens

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/aliceout/nodea/internal/server/models"
)

type Repository interface {
	// Create stores token for userID, valid until now+validity.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Consume removes token and returns what it was issued for, so a token
	// can be used once even by concurrent refreshes. An unknown token
	// yields common.ErrorNotFound. Expiry is left to the caller.
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)

	// DeleteExpired removes the user's tokens that expired before now.
	DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error)
}

// HashToken is the lookup key stored in place of the token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
