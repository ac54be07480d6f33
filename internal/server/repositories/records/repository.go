// Package records stores encrypted module records. Writes that change or
// remove a row are conditional on the guard the caller last saw, so a
// concurrent promotion or delete surfaces as common.ErrVersionConflict
// rather than a silent overwrite.
package records

import (
	"context"

	"github.com/aliceout/nodea/internal/server/models"
)

type Repository interface {
	// Create inserts r and fills in its server-side timestamps.
	Create(ctx context.Context, r *models.Record) error

	// Get returns the record or common.ErrorNotFound.
	Get(ctx context.Context, collection, id string) (*models.Record, error)

	// List returns one page of the records owned by moduleUserID together
	// with the total count, ordered by creation time.
	List(ctx context.Context, collection, moduleUserID string, limit, offset int) ([]*models.Record, int, error)

	// Update stores r's payload, iv and guard if the row still carries
	// expectedGuard.
	Update(ctx context.Context, r *models.Record, expectedGuard string) error

	// Delete removes the row if it still carries expectedGuard.
	Delete(ctx context.Context, collection, id, expectedGuard string) error
}
