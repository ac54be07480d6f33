package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aliceout/nodea/internal/client/api"
	"github.com/aliceout/nodea/internal/client/backup"
	"github.com/aliceout/nodea/internal/client/config"
	"github.com/aliceout/nodea/internal/client/localdb"
	"github.com/aliceout/nodea/internal/client/modules"
	"github.com/aliceout/nodea/internal/client/plugins"
	"github.com/aliceout/nodea/internal/client/services"
	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/logging"
)

// App wires the client services behind the commands. One App lives for
// one process, or for one shell session.
type App struct {
	config *config.Config
	log    logging.Logger
	reader *bufio.Reader
	out    io.Writer
	// prompt receives questions, so out stays clean for piped exports.
	prompt io.Writer

	repos    *localdb.Repositories
	auth     services.AuthService
	records  *services.RecordService
	modules  *modules.Store
	prefs    *modules.Prefs
	backups  *backup.Service
	registry *plugins.Registry

	session *services.Session
	unsub   func()
}

// NewApp opens the guard cache and builds the services for c.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger, in io.Reader, out, prompt io.Writer) (*App, error) {
	dsn, err := c.ResolveCacheDSN()
	if err != nil {
		return nil, err
	}

	repos, err := localdb.InitDatabase(ctx, dsn)
	if err != nil {
		log.Error(ctx, "error initializing cache", "dsn", dsn, "error", err)
		return nil, err
	}

	hc := &http.Client{Timeout: c.RequestTimeout}
	apiClient := api.NewHTTPClient(c.ServerURL, hc)

	hub := modules.NewHub()
	unsub := hub.Subscribe(func(userID string, cfg modules.Config) {
		log.Debug(ctx, "module config saved", "user", userID, "modules", len(cfg))
	})

	return &App{
		config:   c,
		log:      log,
		reader:   bufio.NewReader(in),
		out:      out,
		prompt:   prompt,
		repos:    repos,
		auth:     services.NewAuthService(apiClient, repos.Metadata),
		records:  services.NewRecordService(apiClient, repos.Guards, log),
		modules:  modules.NewStore(apiClient, hub),
		prefs:    modules.NewPrefs(apiClient),
		backups:  backup.NewService(apiClient, hc, repos.Metadata, log),
		registry: plugins.Default(),
		unsub:    unsub,
	}, nil
}

// Close ends the session and closes the cache.
func (a *App) Close(ctx context.Context) error {
	a.logout(ctx)
	if a.unsub != nil {
		a.unsub()
	}
	return a.repos.Close()
}

func (a *App) isLoggedIn() bool {
	return a.session != nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// ensureSession logs in on first use and loads the module config.
func (a *App) ensureSession(ctx context.Context) (*services.Session, error) {
	if a.session != nil {
		return a.session, nil
	}

	username := a.config.Username
	if username == "" {
		prompt := "Username"
		last := a.auth.LastUsername(ctx)
		if last != "" {
			prompt = fmt.Sprintf("Username [%s]", last)
		}
		name, err := getSimpleText(a.reader, prompt, a.prompt)
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = last
		}
		username = name
	}

	password, err := getPassword(a.reader, a.prompt)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(password)

	sess, err := a.auth.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	snap, err := a.modules.Load(ctx, sess.UserID, sess.Key)
	if err != nil {
		a.auth.Logout(ctx, sess)
		if errors.Is(err, common.ErrorKeyMissing) {
			return nil, fmt.Errorf("module config cannot be opened with this key: %w", err)
		}
		return nil, err
	}
	switch snap.State {
	case modules.StateLegacyPlain:
		a.log.Warn(ctx, "module config is stored unencrypted; it will be sealed on the next change")
	case modules.StateUnparsable:
		a.log.Warn(ctx, "module config is unreadable; modules cannot be changed until it is repaired")
	}

	a.log.Info(ctx, "logged in", "user", sess.Username)
	a.session = sess
	return sess, nil
}

func (a *App) logout(ctx context.Context) {
	if a.session == nil {
		return
	}
	a.modules.Forget(a.session.UserID)
	a.auth.Logout(ctx, a.session)
	a.session = nil
}

// moduleContext resolves an enabled module to its plugin and record
// context. It is also the import resolver.
func (a *App) moduleContext(ctx context.Context, moduleID string) (plugins.Plugin, plugins.Context, error) {
	sess, err := a.ensureSession(ctx)
	if err != nil {
		return nil, plugins.Context{}, err
	}
	p, err := a.registry.Get(moduleID)
	if err != nil {
		return nil, plugins.Context{}, err
	}
	cfg, _ := a.modules.Cached(sess.UserID)
	sid, err := cfg.ModuleUserID(moduleID)
	if err != nil {
		return nil, plugins.Context{}, err
	}
	return p, plugins.Context{Records: a.records, Key: sess.Key, ModuleUserID: sid}, nil
}

func (a *App) scope(ctx context.Context, moduleID string) (services.Scope, plugins.Context, error) {
	p, pc, err := a.moduleContext(ctx, moduleID)
	if err != nil {
		return services.Scope{}, pc, err
	}
	return services.Scope{Collection: p.Meta().CollectionName, ModuleUserID: pc.ModuleUserID}, pc, nil
}

// enabledTargets lists the export targets of every enabled module, or of
// only the given ones.
func (a *App) enabledTargets(ctx context.Context, only []string) ([]plugins.Target, error) {
	sess, err := a.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	ids := only
	if len(ids) == 0 {
		cfg, _ := a.modules.Cached(sess.UserID)
		for _, id := range a.registry.IDs() {
			if cfg[id].Enabled {
				ids = append(ids, id)
			}
		}
	}

	targets := make([]plugins.Target, 0, len(ids))
	for _, id := range ids {
		p, pc, err := a.moduleContext(ctx, id)
		if err != nil {
			return nil, err
		}
		targets = append(targets, plugins.Target{Plugin: p, Context: pc})
	}
	return targets, nil
}
