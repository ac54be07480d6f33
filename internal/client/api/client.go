package api

import (
	"context"

	"github.com/aliceout/nodea/internal/wire"
)

type Client interface {
	Register(ctx context.Context, username string, salt []byte, verifier []byte) (string, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (string, error)
	Logout()
	Ping(ctx context.Context) error
	UserID() string

	GetState(ctx context.Context, field string) (string, error)
	PutState(ctx context.Context, field, value string) error

	CreateRecord(ctx context.Context, collection string, req wire.CreateRecordRequest) (*wire.Record, error)
	GetRecord(ctx context.Context, collection, id, sid string) (*wire.Record, error)
	ListRecords(ctx context.Context, collection, sid string, page, perPage int) (*wire.RecordPage, error)
	UpdateRecord(ctx context.Context, collection, id, sid, guard string, req wire.UpdateRecordRequest) (*wire.Record, error)
	DeleteRecord(ctx context.Context, collection, id, sid, guard string) error

	BackupUploadURL(ctx context.Context) (*wire.PresignedURL, error)
	BackupDownloadURL(ctx context.Context, key string) (*wire.PresignedURL, error)
}
