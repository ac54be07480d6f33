package services

import (
	"context"
	"testing"

	"github.com/aliceout/nodea/internal/client/api"
	"github.com/aliceout/nodea/internal/cryptox"
	"github.com/aliceout/nodea/internal/server/servertest"
	"github.com/stretchr/testify/require"
)

// loggedIn registers and logs in a fresh account against a servertest API.
func loggedIn(t *testing.T) (*servertest.Server, *api.HTTPClient, *Session) {
	t.Helper()
	srv := servertest.New(t)
	c := api.NewHTTPClient(srv.URL, srv.Client())

	auth := NewAuthService(c, nil)
	ctx := context.Background()
	_, err := auth.Register(ctx, "alice", []byte("correct horse"))
	require.NoError(t, err)
	sess, err := auth.Login(ctx, "alice", []byte("correct horse"))
	require.NoError(t, err)
	require.NoError(t, sess.Key.Validate())
	return srv, c, sess
}

func zeroKey() cryptox.RawKey {
	return cryptox.RawKey(make([]byte, cryptox.KeySize))
}
