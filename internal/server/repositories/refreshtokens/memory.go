package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/server/models"
	"github.com/google/uuid"
)

// InMemoryRepository keeps tokens by hash in process memory.
type InMemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{tokens: make(map[string]models.RefreshToken)}
}

func (r *InMemoryRepository) Create(_ context.Context, userID string, token string, validity time.Duration) error {
	now := time.Now()
	h := HashToken(token)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[h] = models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: h,
		Expires:   now.Add(validity),
		CreatedAt: now,
	}
	return nil
}

func (r *InMemoryRepository) Consume(_ context.Context, token string) (*models.RefreshToken, error) {
	h := HashToken(token)

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[h]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.tokens, h)
	return &t, nil
}

func (r *InMemoryRepository) DeleteExpired(_ context.Context, userID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, t := range r.tokens {
		if t.UserID == userID && t.Expires.Before(now) {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}
