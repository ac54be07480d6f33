package backup

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/aliceout/nodea/internal/client/api"
	"github.com/aliceout/nodea/internal/client/localdb"
	"github.com/aliceout/nodea/internal/client/plugins"
	"github.com/aliceout/nodea/internal/client/services"
	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/cryptox"
	"github.com/aliceout/nodea/internal/logging"
	"github.com/aliceout/nodea/internal/server/servertest"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv  *servertest.Server
	svc  *Service
	sess *services.Session
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	srv := servertest.New(t)
	c := api.NewHTTPClient(srv.URL, srv.Client())
	auth := services.NewAuthService(c, nil)
	_, err := auth.Register(ctx, "bob", []byte("pw"))
	require.NoError(t, err)
	sess, err := auth.Login(ctx, "bob", []byte("pw"))
	require.NoError(t, err)

	repos, err := localdb.InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	return &fixture{
		srv:  srv,
		svc:  NewService(c, srv.Client(), repos.Metadata, logging.Nop()),
		sess: sess,
	}
}

func sampleBundle() *plugins.Bundle {
	return &plugins.Bundle{
		App:           plugins.BundleApp,
		FormatVersion: plugins.FormatVersion,
		ExportedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Items: []plugins.Item{
			{Module: "mood", Version: 1, Payload: plugins.Plain{"date": "2024-05-01", "mood_score": float64(3), "comment": "Sunny walk"}},
		},
	}
}

func TestPushPull_RoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	key, err := f.svc.Push(ctx, sampleBundle(), f.sess.Key)
	require.NoError(t, err)
	assert.Contains(t, key, "users/"+f.sess.UserID+"/backups/")

	blob, ok := f.srv.Blobs.Object(key)
	require.True(t, ok)
	assert.False(t, bytes.Contains(blob, []byte("Sunny walk")))

	last, err := f.svc.LastKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, key, last)

	got, err := f.svc.Pull(ctx, "", f.sess.Key)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleBundle(), got); diff != "" {
		t.Errorf("bundle mismatch (-want +got):\n%s", diff)
	}
}

func TestPull_WrongKey(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	key, err := f.svc.Push(ctx, sampleBundle(), f.sess.Key)
	require.NoError(t, err)

	_, err = f.svc.Pull(ctx, key, cryptox.RawKey(make([]byte, cryptox.KeySize)))
	assert.ErrorIs(t, err, common.ErrorKeyMissing)
}

func TestPull_ForeignKeyIsNotFound(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Pull(context.Background(), "users/someone-else/backups/x", f.sess.Key)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPull_NothingPushedYet(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Pull(context.Background(), "", f.sess.Key)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	noMeta := NewService(nil, nil, nil, logging.Nop())
	_, err = noMeta.LastKey(context.Background())
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
