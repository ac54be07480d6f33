// Package backup pushes sealed export bundles to object storage through
// presigned URLs and pulls them back.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aliceout/nodea/internal/client/api"
	"github.com/aliceout/nodea/internal/client/plugins"
	"github.com/aliceout/nodea/internal/client/repositories/metadata"
	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/cryptox"
	"github.com/aliceout/nodea/internal/logging"
	"github.com/aliceout/nodea/internal/netx"
)

const envelopeVersion = 1

// envelope is what lands in the bucket. The bundle JSON is sealed as a
// whole; the server only ever sees ciphertext.
type envelope struct {
	Version int    `json:"v"`
	IV      []byte `json:"iv"`
	Data    []byte `json:"data"`
}

type Service struct {
	client api.Client
	hc     *http.Client
	meta   metadata.Repository
	log    logging.Logger
}

// NewService constructs a backup service. hc talks to object storage and
// meta, if non-nil, remembers the last pushed key.
func NewService(client api.Client, hc *http.Client, meta metadata.Repository, log logging.Logger) *Service {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Service{client: client, hc: hc, meta: meta, log: log.With("component", "backup")}
}

// Push seals b with key and uploads it. It returns the object key.
func (s *Service) Push(ctx context.Context, b *plugins.Bundle, key cryptox.RawKey) (string, error) {
	plain, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	sealed, err := cryptox.Seal(plain, key)
	common.WipeByteArray(plain)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(envelope{Version: envelopeVersion, IV: sealed.IV, Data: sealed.Ciphertext})
	if err != nil {
		return "", err
	}

	target, err := s.client.BackupUploadURL(ctx)
	if err != nil {
		return "", fmt.Errorf("backup upload url: %w", err)
	}
	if err := netx.Upload(ctx, s.hc, target.URL, body); err != nil {
		return "", err
	}

	if s.meta != nil {
		if err := s.meta.Set(ctx, metadata.KeyLastBackup, target.Key); err != nil {
			s.log.Warn(ctx, "could not remember backup key", "key", target.Key, "error", err)
		}
	}
	s.log.Info(ctx, "backup pushed", "key", target.Key, "bytes", len(body), "items", len(b.Items))
	return target.Key, nil
}

// LastKey returns the key of the last backup pushed from this device.
func (s *Service) LastKey(ctx context.Context) (string, error) {
	if s.meta == nil {
		return "", common.ErrorNotFound
	}
	v, err := s.meta.Get(ctx, metadata.KeyLastBackup)
	if errors.Is(err, common.ErrorNotFound) {
		return "", fmt.Errorf("%w: no backup pushed yet", common.ErrorNotFound)
	}
	return v, err
}

// Pull downloads and opens the backup stored under objectKey. An empty
// objectKey means the last pushed one.
func (s *Service) Pull(ctx context.Context, objectKey string, key cryptox.RawKey) (*plugins.Bundle, error) {
	if objectKey == "" {
		k, err := s.LastKey(ctx)
		if err != nil {
			return nil, err
		}
		objectKey = k
	}

	target, err := s.client.BackupDownloadURL(ctx, objectKey)
	if err != nil {
		return nil, fmt.Errorf("backup download url: %w", err)
	}
	body, err := netx.Download(ctx, s.hc, target.URL)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: backup is not an envelope: %v", common.ErrorValidation, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported backup version %d", common.ErrorValidation, env.Version)
	}

	plain, err := cryptox.OpenWithRetry(cryptox.Sealed{IV: env.IV, Ciphertext: env.Data}, key)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plain)

	var b plugins.Bundle
	if err := json.Unmarshal(plain, &b); err != nil {
		return nil, fmt.Errorf("%w: backup bundle: %v", common.ErrorValidation, err)
	}
	return &b, nil
}
