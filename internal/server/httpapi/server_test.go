package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/logging"
	"github.com/aliceout/nodea/internal/server/auth"
	"github.com/aliceout/nodea/internal/server/config"
	"github.com/aliceout/nodea/internal/server/repositories/repomanager"
	"github.com/aliceout/nodea/internal/server/services"
	"github.com/aliceout/nodea/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type stubBackups struct{}

func (stubBackups) UploadURL(ctx context.Context, userID string) (string, string, error) {
	return "users/" + userID + "/backups/k", "https://s3/put", nil
}

func (stubBackups) DownloadURL(ctx context.Context, userID, key string) (string, error) {
	if !strings.HasPrefix(key, "users/"+userID+"/") {
		return "", common.ErrorNotFound
	}
	return "https://s3/get", nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                    secret,
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: time.Hour,
		Collections:                  []string{"mood_entries"},
		MaxPageSize:                  100,
	}
	rm := repomanager.NewMemoryRepositoryManager()
	log := logging.Nop()
	srv := NewServer(":0", log,
		services.NewUserService(nil, rm, cfg, log),
		services.NewRecordService(nil, rm, cfg, log),
		stubBackups{},
		secret,
	)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	if e, ok := out.(*wire.ErrorResponse); ok && resp.StatusCode >= 300 {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(e))
	}
	return resp.StatusCode
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	c := &client{t: t, base: ts.URL}
	var pong wire.PingResponse
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/ping", nil, &pong))
	assert.Equal(t, "OK", pong.Status)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	c := &client{t: t, base: ts.URL}

	var reg wire.RegisterResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/auth/register",
		wire.RegisterRequest{Username: "alice", Salt: []byte("salt"), Verifier: []byte("ver")}, &reg))
	require.NotEmpty(t, reg.UserID)

	var salt wire.SaltResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/auth/salt", wire.SaltRequest{Username: "alice"}, &salt))
	assert.Equal(t, []byte("salt"), salt.Salt)

	var e wire.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/auth/login",
		wire.LoginRequest{Username: "alice", Verifier: []byte("bad")}, &e))

	var tokens wire.TokenResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/auth/login",
		wire.LoginRequest{Username: "alice", Verifier: []byte("ver")}, &tokens))
	assert.Equal(t, reg.UserID, tokens.UserID)

	var refreshed wire.TokenResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/auth/refresh",
		wire.RefreshRequest{RefreshToken: tokens.RefreshToken}, &refreshed))
	assert.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)

	// refresh tokens are single use
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/auth/refresh",
		wire.RefreshRequest{RefreshToken: tokens.RefreshToken}, &e))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	ts := newTestServer(t)
	c := &client{t: t, base: ts.URL}

	var e wire.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/collections/mood_entries/records?sid=m_1", nil, &e))

	expired, err := auth.GenerateToken("u1", []byte(secret), -time.Minute)
	require.NoError(t, err)
	c.token = expired
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/collections/mood_entries/records?sid=m_1", nil, &e))
	assert.Equal(t, MessageTokenExpired, e.Message)

	c.token = "garbage"
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/collections/mood_entries/records?sid=m_1", nil, &e))
	assert.Equal(t, "unauthorized", e.Message)
}

func TestState_OwnUserOnly(t *testing.T) {
	ts := newTestServer(t)
	c := &client{t: t, base: ts.URL}

	var reg wire.RegisterResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/auth/register",
		wire.RegisterRequest{Username: "bob", Salt: []byte("s"), Verifier: []byte("v")}, &reg))
	var tokens wire.TokenResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/auth/login",
		wire.LoginRequest{Username: "bob", Verifier: []byte("v")}, &tokens))
	c.token = tokens.AccessToken

	path := "/api/users/" + reg.UserID + "/state/modules"
	assert.Equal(t, http.StatusNoContent, c.do(http.MethodPut, path, wire.StateValue{Value: "sealed"}, nil))

	var got wire.StateValue
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, path, nil, &got))
	assert.Equal(t, "sealed", got.Value)

	var e wire.ErrorResponse
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/api/users/someone-else/state/modules", nil, &e))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/users/"+reg.UserID+"/state/secrets", nil, &e))
}

func TestRecordLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token, err := auth.GenerateToken("u1", []byte(secret), time.Hour)
	require.NoError(t, err)
	c := &client{t: t, base: ts.URL, token: token}
	base := "/api/collections/mood_entries/records"
	promoted := "g_" + strings.Repeat("0f", 32)

	var e wire.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, base,
		wire.CreateRecordRequest{ModuleUserID: "m_1", Payload: []byte("c"), CipherIV: []byte("i"), Guard: "nope"}, &e))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/api/collections/users/records",
		wire.CreateRecordRequest{ModuleUserID: "m_1", Payload: []byte("c"), CipherIV: []byte("i"), Guard: "init"}, &e))

	var rec wire.Record
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, base,
		wire.CreateRecordRequest{ModuleUserID: "m_1", Payload: []byte("c"), CipherIV: []byte("i"), Guard: "init"}, &rec))
	require.NotEmpty(t, rec.ID)

	var page wire.RecordPage
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, base+"?sid=m_1&page=1&perPage=10", nil, &page))
	assert.Equal(t, 1, page.TotalItems)
	require.Len(t, page.Items, 1)
	assert.Equal(t, rec.ID, page.Items[0].ID)

	require.Equal(t, http.StatusOK, c.do(http.MethodGet, base+"?sid=m_2", nil, &page))
	assert.Empty(t, page.Items)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, base, nil, &e))

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, base+"/"+rec.ID+"?sid=m_2", nil, &e))

	// promote
	var updated wire.Record
	require.Equal(t, http.StatusOK, c.do(http.MethodPatch, base+"/"+rec.ID+"?sid=m_1&d=init",
		wire.UpdateRecordRequest{Guard: &promoted}, &updated))

	// placeholder no longer opens the record
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodPatch, base+"/"+rec.ID+"?sid=m_1&d=init",
		wire.UpdateRecordRequest{Payload: []byte("x"), CipherIV: []byte("y")}, &e))
	assert.Equal(t, MessageForbidden, e.Message)
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodDelete, base+"/"+rec.ID+"?sid=m_1&d=init", nil, &e))

	require.Equal(t, http.StatusOK, c.do(http.MethodPatch, base+"/"+rec.ID+"?sid=m_1&d="+promoted,
		wire.UpdateRecordRequest{Payload: []byte("x"), CipherIV: []byte("y")}, &updated))
	assert.Equal(t, []byte("x"), updated.Payload)

	// empty ciphertext never replaces stored content
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPatch, base+"/"+rec.ID+"?sid=m_1&d="+promoted,
		map[string]string{"payload": "", "cipher_iv": ""}, &e))
	// another sid cannot tell this record from a missing one
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPatch, base+"/"+rec.ID+"?sid=m_2&d="+promoted,
		map[string]string{"payload": "eA=="}, &e))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodDelete, base+"/"+rec.ID+"?sid=m_2&d="+promoted, nil, &e))

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, base+"/"+rec.ID+"?sid=m_1&d="+promoted, nil, nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, base+"/"+rec.ID+"?sid=m_1", nil, &e))
}

func TestRecordJSONHasNoGuard(t *testing.T) {
	ts := newTestServer(t)
	token, err := auth.GenerateToken("u1", []byte(secret), time.Hour)
	require.NoError(t, err)

	body, _ := json.Marshal(wire.CreateRecordRequest{ModuleUserID: "m_1", Payload: []byte("c"), CipherIV: []byte("i"), Guard: "init"})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/collections/mood_entries/records", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.NotContains(t, raw, "guard")
	assert.Contains(t, raw, "module_user_id")
}

func TestBackupURLs(t *testing.T) {
	ts := newTestServer(t)
	token, err := auth.GenerateToken("u1", []byte(secret), time.Hour)
	require.NoError(t, err)
	c := &client{t: t, base: ts.URL, token: token}

	var up wire.PresignedURL
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/backups/upload-url", nil, &up))
	assert.Equal(t, "users/u1/backups/k", up.Key)

	var down wire.PresignedURL
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/backups/download-url?key="+up.Key, nil, &down))
	assert.Equal(t, "https://s3/get", down.URL)

	var e wire.ErrorResponse
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/backups/download-url?key=users/u2/backups/k", nil, &e))
}
