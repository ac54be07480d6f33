// Package guards caches promoted record guards locally, keyed by
// (collection, record id). The cache is best effort: a miss means the
// guard is derived again, and the server never trusts it.
package guards

import "context"

type Repository interface {
	// Get returns "" when nothing is cached.
	Get(ctx context.Context, collection, recordID string) (string, error)
	Put(ctx context.Context, collection, recordID, guard string) error
	Delete(ctx context.Context, collection, recordID string) error
	Clear(ctx context.Context) error
}
