// Package httpapi exposes the Nodea services over REST/JSON.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/aliceout/nodea/internal/logging"
	"github.com/aliceout/nodea/internal/server/models"
	"github.com/aliceout/nodea/internal/server/rules"
	"github.com/aliceout/nodea/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

type UserService interface {
	Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	GetState(ctx context.Context, userID, field string) (string, error)
	PutState(ctx context.Context, userID, field, value string) error
}

type RecordService interface {
	List(ctx context.Context, collection string, p rules.Params, page, perPage int) (*services.RecordPage, error)
	Get(ctx context.Context, collection, id string, p rules.Params) (*models.Record, error)
	Create(ctx context.Context, collection string, rec *models.Record) (*models.Record, error)
	Update(ctx context.Context, collection, id string, p rules.Params, patch models.RecordPatch) (*models.Record, error)
	Delete(ctx context.Context, collection, id string, p rules.Params) error
}

type BackupService interface {
	UploadURL(ctx context.Context, userID string) (string, string, error)
	DownloadURL(ctx context.Context, userID, key string) (string, error)
}

type Server struct {
	address   string
	users     UserService
	records   RecordService
	backups   BackupService
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(a string, l logging.Logger, us UserService, rs RecordService, bs BackupService, secretKey string) *Server {
	return &Server{
		address:   a,
		logger:    l.With("module", "http_server"),
		users:     us,
		records:   rs,
		backups:   bs,
		jwtSecret: []byte(secretKey),
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(api chi.Router) {
		api.Get("/ping", s.ping)

		api.Route("/auth", func(a chi.Router) {
			a.Post("/register", s.register)
			a.Post("/salt", s.salt)
			a.Post("/login", s.login)
			a.Post("/refresh", s.refresh)
		})

		api.Group(func(p chi.Router) {
			p.Use(s.accessTokenMiddleware)

			p.Get("/users/{id}/state/{field}", s.getState)
			p.Put("/users/{id}/state/{field}", s.putState)

			p.Route("/collections/{collection}/records", func(rr chi.Router) {
				rr.Get("/", s.listRecords)
				rr.Post("/", s.createRecord)
				rr.Get("/{id}", s.getRecord)
				rr.Patch("/{id}", s.updateRecord)
				rr.Delete("/{id}", s.deleteRecord)
			})

			p.Post("/backups/upload-url", s.backupUploadURL)
			p.Get("/backups/download-url", s.backupDownloadURL)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
