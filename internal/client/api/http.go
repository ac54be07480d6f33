package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/wire"
)

const tokenExpiredMessage = "token expired"

type HTTPClient struct {
	baseURL string
	hc      *http.Client

	mu           sync.Mutex
	userID       string
	accessToken  string
	refreshToken string
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient talks to the API rooted at baseURL (e.g.
// "http://127.0.0.1:8090"). A nil hc means http.DefaultClient.
func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

func (c *HTTPClient) tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *HTTPClient) setSession(resp *wire.TokenResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resp.UserID != "" {
		c.userID = resp.UserID
	}
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
}

func (c *HTTPClient) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Logout forgets the session tokens.
func (c *HTTPClient) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID, c.accessToken, c.refreshToken = "", "", ""
}

type call struct {
	method string
	path   string
	query  url.Values
	in     any
	out    any
	auth   bool
}

// do runs a call. An authenticated call that fails with "token expired" is
// retried once after a token refresh.
func (c *HTTPClient) do(ctx context.Context, cl call) error {
	var body []byte
	if cl.in != nil {
		var err error
		if body, err = json.Marshal(cl.in); err != nil {
			return err
		}
	}

	err := c.send(ctx, cl, body)
	if !cl.auth || !errors.Is(err, common.ErrTokenExpired) {
		return err
	}

	_, refresh := c.tokens()
	if refresh == "" {
		return err
	}
	if rerr := c.refresh(ctx, refresh); rerr != nil {
		return rerr
	}
	return c.send(ctx, cl, body)
}

func (c *HTTPClient) send(ctx context.Context, cl call, body []byte) error {
	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.auth {
		access, _ := c.tokens()
		if access == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+access)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if cl.out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", cl.method, cl.path, err)
		}
		return nil
	}

	var e wire.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
	return mapStatus(resp.StatusCode, e.Message)
}

func mapStatus(code int, msg string) error {
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch code {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrorValidation, msg)
	case http.StatusUnauthorized:
		if msg == tokenExpiredMessage {
			return fmt.Errorf("%w: %w", ErrUnauthorized, common.ErrTokenExpired)
		}
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusForbidden:
		return common.ErrorForbidden
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", common.ErrorInternal, code, msg)
	}
}

func (c *HTTPClient) refresh(ctx context.Context, refreshToken string) error {
	body, err := json.Marshal(wire.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}

	var resp wire.TokenResponse
	if err := c.send(ctx, call{method: http.MethodPost, path: "/api/auth/refresh", out: &resp}, body); err != nil {
		return err
	}
	c.setSession(&resp)
	return nil
}

func (c *HTTPClient) Register(ctx context.Context, username string, salt []byte, verifier []byte) (string, error) {
	var resp wire.RegisterResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/auth/register",
		in:     wire.RegisterRequest{Username: username, Salt: salt, Verifier: verifier},
		out:    &resp,
	})
	if err != nil {
		return "", err
	}
	return resp.UserID, nil
}

func (c *HTTPClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	var resp wire.SaltResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/auth/salt",
		in:     wire.SaltRequest{Username: username},
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return resp.Salt, nil
}

// Login opens a session and returns the user id.
func (c *HTTPClient) Login(ctx context.Context, username string, verifier []byte) (string, error) {
	var resp wire.TokenResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/auth/login",
		in:     wire.LoginRequest{Username: username, Verifier: verifier},
		out:    &resp,
	})
	if err != nil {
		return "", err
	}
	c.setSession(&resp)
	return resp.UserID, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp wire.PingResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/ping", out: &resp}); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) statePath(field string) (string, error) {
	uid := c.UserID()
	if uid == "" {
		return "", ErrNotLoggedIn
	}
	return "/api/users/" + url.PathEscape(uid) + "/state/" + url.PathEscape(field), nil
}

func (c *HTTPClient) GetState(ctx context.Context, field string) (string, error) {
	path, err := c.statePath(field)
	if err != nil {
		return "", err
	}
	var resp wire.StateValue
	if err := c.do(ctx, call{method: http.MethodGet, path: path, out: &resp, auth: true}); err != nil {
		return "", err
	}
	return resp.Value, nil
}

func (c *HTTPClient) PutState(ctx context.Context, field, value string) error {
	path, err := c.statePath(field)
	if err != nil {
		return err
	}
	return c.do(ctx, call{method: http.MethodPut, path: path, in: wire.StateValue{Value: value}, auth: true})
}

func recordsPath(collection string) string {
	return "/api/collections/" + url.PathEscape(collection) + "/records"
}

func capability(sid, guard string) url.Values {
	q := url.Values{}
	q.Set(common.ParamModuleID, sid)
	if guard != "" {
		q.Set(common.ParamGuard, guard)
	}
	return q
}

func (c *HTTPClient) CreateRecord(ctx context.Context, collection string, req wire.CreateRecordRequest) (*wire.Record, error) {
	var rec wire.Record
	err := c.do(ctx, call{method: http.MethodPost, path: recordsPath(collection), in: req, out: &rec, auth: true})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) GetRecord(ctx context.Context, collection, id, sid string) (*wire.Record, error) {
	var rec wire.Record
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   recordsPath(collection) + "/" + url.PathEscape(id),
		query:  capability(sid, ""),
		out:    &rec,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) ListRecords(ctx context.Context, collection, sid string, page, perPage int) (*wire.RecordPage, error) {
	q := capability(sid, "")
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))

	var resp wire.RecordPage
	err := c.do(ctx, call{method: http.MethodGet, path: recordsPath(collection), query: q, out: &resp, auth: true})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateRecord(ctx context.Context, collection, id, sid, guard string, req wire.UpdateRecordRequest) (*wire.Record, error) {
	var rec wire.Record
	err := c.do(ctx, call{
		method: http.MethodPatch,
		path:   recordsPath(collection) + "/" + url.PathEscape(id),
		query:  capability(sid, guard),
		in:     req,
		out:    &rec,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) DeleteRecord(ctx context.Context, collection, id, sid, guard string) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		path:   recordsPath(collection) + "/" + url.PathEscape(id),
		query:  capability(sid, guard),
		auth:   true,
	})
}

func (c *HTTPClient) BackupUploadURL(ctx context.Context) (*wire.PresignedURL, error) {
	var resp wire.PresignedURL
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/backups/upload-url", out: &resp, auth: true}); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) BackupDownloadURL(ctx context.Context, key string) (*wire.PresignedURL, error) {
	var resp wire.PresignedURL
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/backups/download-url",
		query:  url.Values{"key": []string{key}},
		out:    &resp,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
