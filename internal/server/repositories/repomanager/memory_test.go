package repomanager

import (
	"context"
	"testing"
	"time"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/server/models"
	"github.com/aliceout/nodea/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryManager_SharesState(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRepositoryManager()
	require.NoError(t, m.RunMigrations(ctx, nil))

	u, err := m.Users(nil).Create(ctx, &models.User{UserName: "alice", Salt: []byte("s"), Verifier: []byte("v")})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = m.Users(nil).Create(ctx, &models.User{UserName: "alice"})
	assert.Error(t, err)

	got, err := m.Users(nil).GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, m.Users(nil).PutState(ctx, u.ID, wire.StateModules, "blob"))
	state, err := m.Users(nil).GetState(ctx, u.ID, wire.StateModules)
	require.NoError(t, err)
	assert.Equal(t, "blob", state)
	assert.ErrorIs(t, m.Users(nil).PutState(ctx, "ghost", wire.StateModules, "x"), common.ErrorNotFound)

	require.NoError(t, m.RefreshTokens(nil).Create(ctx, u.ID, "fresh", time.Hour))
	require.NoError(t, m.RefreshTokens(nil).Create(ctx, u.ID, "stale", -time.Hour))
	n, err := m.RefreshTokens(nil).DeleteExpired(ctx, u.ID, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = m.RefreshTokens(nil).Consume(ctx, "stale")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	tok, err := m.RefreshTokens(nil).Consume(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, u.ID, tok.UserID)
	_, err = m.RefreshTokens(nil).Consume(ctx, "fresh")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
