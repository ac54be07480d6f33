package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/server/models"
	"github.com/google/uuid"
)

// InMemoryRepository is a process-local users store.
type InMemoryRepository struct {
	mu     sync.Mutex
	byName map[string]*models.User
	state  map[string]map[string]string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byName: make(map[string]*models.User),
		state:  make(map[string]map[string]string),
	}
}

func (r *InMemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[user.UserName]; ok {
		return nil, fmt.Errorf("db error: user %q already exists", user.UserName)
	}
	u := *user
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	r.byName[u.UserName] = &u
	r.state[u.ID] = map[string]string{}

	out := u
	return &out, nil
}

func (r *InMemoryRepository) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byName[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (r *InMemoryRepository) GetState(_ context.Context, userID, field string) (string, error) {
	if _, err := stateColumn(field); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fields, ok := r.state[userID]
	if !ok {
		return "", common.ErrorNotFound
	}
	return fields[field], nil
}

func (r *InMemoryRepository) PutState(_ context.Context, userID, field, value string) error {
	if _, err := stateColumn(field); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fields, ok := r.state[userID]
	if !ok {
		return common.ErrorNotFound
	}
	fields[field] = value
	return nil
}
