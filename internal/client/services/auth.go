// Package services holds the client application services: account
// sessions and the record lifecycle coordinator.
package services

import (
	"context"
	"fmt"

	"github.com/aliceout/nodea/internal/client/api"
	"github.com/aliceout/nodea/internal/client/repositories/metadata"
	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/cryptox"
)

const saltSize = 32

// Session is an authenticated user with the raw key derived at login. The
// key lives only here; call AuthService.Logout to wipe it.
type Session struct {
	UserID   string
	Username string
	Key      cryptox.RawKey
}

// AuthService defines account operations for the CLI.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) (string, error)
	Login(ctx context.Context, username string, password []byte) (*Session, error)
	Logout(ctx context.Context, s *Session)
	Ping(ctx context.Context) error
	// LastUsername is the account of the previous successful login, or "".
	LastUsername(ctx context.Context) string
}

type authService struct {
	client api.Client
	meta   metadata.Repository
}

// NewAuthService constructs an AuthService. meta may be nil.
func NewAuthService(client api.Client, meta metadata.Repository) AuthService {
	return &authService{client: client, meta: meta}
}

// Register creates a new account: a random salt, the argon2 master key
// derived from the password, and its verifier are sent to the server. The
// master key itself never leaves the process.
func (a *authService) Register(ctx context.Context, username string, password []byte) (string, error) {
	if username == "" || len(password) == 0 {
		return "", fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	salt := common.GenerateRandByteArray(saltSize)
	key := cryptox.DeriveMasterKey(password, salt)
	defer key.Wipe()

	userID, err := a.client.Register(ctx, username, salt, cryptox.MakeVerifier(key))
	if err != nil {
		return "", fmt.Errorf("register error: %w", err)
	}
	return userID, nil
}

// Login fetches the salt, derives the master key and proves it with the
// verifier. On success the returned session carries the raw key.
func (a *authService) Login(ctx context.Context, username string, password []byte) (*Session, error) {
	salt, err := a.client.GetSalt(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get salt error: %w", err)
	}

	key := cryptox.DeriveMasterKey(password, salt)

	userID, err := a.client.Login(ctx, username, cryptox.MakeVerifier(key))
	if err != nil {
		key.Wipe()
		return nil, fmt.Errorf("login error: %w", err)
	}

	a.remember(ctx, username)

	return &Session{UserID: userID, Username: username, Key: key}, nil
}

// Logout wipes the raw key and drops the server session.
func (a *authService) Logout(_ context.Context, s *Session) {
	if s != nil {
		s.Key.Wipe()
		s.Key = nil
	}
	a.client.Logout()
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) LastUsername(ctx context.Context) string {
	if a.meta == nil {
		return ""
	}
	v, err := a.meta.Get(ctx, metadata.KeyUsername)
	if err != nil {
		return ""
	}
	return v
}

// remember stores the account name of this device. Bookkeeping left by
// another account is dropped. Failures do not fail the login.
func (a *authService) remember(ctx context.Context, username string) {
	if a.meta == nil {
		return
	}
	if prev := a.LastUsername(ctx); prev != "" && prev != username {
		_ = a.meta.Delete(ctx, metadata.KeyLastBackup)
	}
	_ = a.meta.Set(ctx, metadata.KeyUsername, username)
}
