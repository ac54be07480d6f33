package users

import (
	"context"

	"github.com/aliceout/nodea/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	// GetState returns one of the opaque per-user state blobs (see
	// wire.StateModules, wire.StatePrefs). A user who never stored the
	// field gets "".
	GetState(ctx context.Context, userID, field string) (string, error)
	PutState(ctx context.Context, userID, field, value string) error
}
