// Package servertest runs a complete Nodea API on an httptest server with
// in-memory repositories and an in-process object store standing in for S3.
// Client packages use it for end-to-end tests.
package servertest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/logging"
	"github.com/aliceout/nodea/internal/server/config"
	"github.com/aliceout/nodea/internal/server/httpapi"
	"github.com/aliceout/nodea/internal/server/repositories/repomanager"
	"github.com/aliceout/nodea/internal/server/services"
	"github.com/google/uuid"
)

const Secret = "servertest-secret"

// Collections served by New unless the caller passes its own.
var Collections = []string{"mood_entries", "goals_entries", "passage_entries"}

type Server struct {
	*httptest.Server
	Repos *repomanager.MemoryRepositoryManager
	Blobs *BlobStore
}

// New starts the API. It is shut down by t.Cleanup.
func New(t testing.TB, collections ...string) *Server {
	t.Helper()
	if len(collections) == 0 {
		collections = Collections
	}

	cfg := &config.Config{
		SecretKey:                    Secret,
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: time.Hour,
		Collections:                  collections,
		MaxPageSize:                  200,
	}

	blobs := newBlobStore()
	t.Cleanup(blobs.Close)

	rm := repomanager.NewMemoryRepositoryManager()
	log := logging.Nop()
	api := httpapi.NewServer(":0", log,
		services.NewUserService(nil, rm, cfg, log),
		services.NewRecordService(nil, rm, cfg, log),
		blobs,
		Secret,
	)

	ts := httptest.NewServer(api.Router())
	t.Cleanup(ts.Close)
	return &Server{Server: ts, Repos: rm, Blobs: blobs}
}

// BlobStore accepts PUT and serves GET on /<key>, like a presigned bucket.
type BlobStore struct {
	srv *httptest.Server
	mu  sync.Mutex
	m   map[string][]byte
}

func newBlobStore() *BlobStore {
	b := &BlobStore{m: make(map[string][]byte)}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	return b
}

func (b *BlobStore) Close() { b.srv.Close() }

func (b *BlobStore) serve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.m[key] = data
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		b.mu.Lock()
		data, ok := b.m[key]
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Object returns a stored blob.
func (b *BlobStore) Object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.m[key]
	return data, ok
}

func (b *BlobStore) UploadURL(_ context.Context, userID string) (string, string, error) {
	key := "users/" + userID + "/backups/" + uuid.NewString()
	return key, b.srv.URL + "/" + key, nil
}

func (b *BlobStore) DownloadURL(_ context.Context, userID, key string) (string, error) {
	if !strings.HasPrefix(key, "users/"+userID+"/backups/") || strings.Contains(key, "..") {
		return "", common.ErrorNotFound
	}
	return b.srv.URL + "/" + key, nil
}
