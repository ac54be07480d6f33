// Package server wires configuration, storage and services together and
// runs the HTTP API until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aliceout/nodea/internal/logging"
	"github.com/aliceout/nodea/internal/server/config"
	"github.com/aliceout/nodea/internal/server/httpapi"
	"github.com/aliceout/nodea/internal/server/repositories/repomanager"
	"github.com/aliceout/nodea/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// NewApp opens storage, applies migrations and builds the services. The
// DSN repomanager.MemoryDSN selects process-local storage.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	var (
		db *sql.DB
		rm repomanager.RepositoryManager
	)

	if cfg.DatabaseDSN == repomanager.MemoryDSN {
		logger.Warn(ctx, "using in-memory storage, data is lost on exit")
		rm = repomanager.NewMemoryRepositoryManager()
	} else {
		var err error
		db, err = sqlOpen("pgx", cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db ping error: %w", err)
		}
		rm = repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations error: %w", err)
		}
	}

	us := services.NewUserService(db, rm, cfg, logger)
	rs := services.NewRecordService(db, rm, cfg, logger)
	bs := services.NewBackupService(cfg)

	srv := httpapi.NewServer(cfg.EndpointAddrHTTP, logger, us, rs, bs, cfg.SecretKey)

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	err := app.server.Run(ctx)

	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil {
			app.logger.Error(ctx, "db close error", "error", cerr)
		}
	}
	return err
}
