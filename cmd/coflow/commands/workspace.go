package commands

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/teranos/coflow/app"
	"github.com/teranos/coflow/config"
	"github.com/teranos/coflow/db"
	"github.com/teranos/coflow/doc/memstore"
	"github.com/teranos/coflow/doc/sqlstore"
	"github.com/teranos/coflow/errors"
	"github.com/teranos/coflow/flow"
	"github.com/teranos/coflow/logger"
	"github.com/teranos/coflow/metrics"
)

// DefaultAuthor is used when neither --author, identity.author nor $USER is set
const DefaultAuthor = "anonymous"

// Globals holds the persistent root flags
var Globals struct {
	ConfigPath string
	DBPath     string
	Author     string
	Verbosity  int
	JSONLogs   bool
}

// workspace is everything a command needs to act on flows
type workspace struct {
	cfg       *config.Config
	author    string
	db        *sql.DB
	persister *sqlstore.Persister
	hub       *memstore.Hub
	manager   *app.Manager
	metrics   *metrics.Registry
}

// loadConfig reads --config if given, the layered configuration otherwise
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if Globals.ConfigPath != "" {
		cfg, err = config.LoadFromFile(Globals.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if Globals.DBPath != "" {
		cfg.Database.Path = Globals.DBPath
	}
	return cfg, nil
}

// resolveAuthor picks the collaborator identity, flag first
func resolveAuthor(cfg *config.Config) string {
	for _, candidate := range []string{Globals.Author, cfg.Identity.Author, os.Getenv("USER")} {
		if a := strings.TrimSpace(candidate); a != "" {
			return a
		}
	}
	return DefaultAuthor
}

func openWorkspace(extra ...app.Option) (*workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newWorkspace(cfg, resolveAuthor(cfg), extra...)
}

// newWorkspace opens the flow database and builds the engine and manager on top of it
func newWorkspace(cfg *config.Config, author string, extra ...app.Option) (*workspace, error) {
	database, err := db.OpenWithMigrations(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", cfg.Database.Path)
	}

	persister := sqlstore.New(database,
		sqlstore.WithFeedRetention(cfg.Database.FeedRetention),
		sqlstore.WithLogger(logger.ComponentLogger("sqlstore")),
	)
	hub := memstore.NewHub(
		memstore.WithPersister(persister),
		memstore.WithLogger(logger.ComponentLogger("memstore")),
	)

	ws := &workspace{
		cfg:       cfg,
		author:    author,
		db:        database,
		persister: persister,
		hub:       hub,
	}

	opts := []app.Option{
		app.WithPalette(cfg.Presence.NewPalette()),
		app.WithSessionOptions(cfg.Presence.SessionOptions()...),
		app.WithLogger(logger.ComponentLogger("app")),
	}
	if cfg.Metrics.Enabled {
		ws.metrics = metrics.NewRegistry()
		opts = append(opts, app.WithMetrics(ws.metrics))
	}
	opts = append(opts, extra...)
	ws.manager = app.NewManager(hub.Connect(author), opts...)
	return ws, nil
}

// join makes code the active flow or returns the manager's error message
func (ws *workspace) join(ctx context.Context, code string) (*flow.Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.WithHint(errors.New("flow code is required"), "pass the code printed by 'coflow new'")
	}
	if !ws.manager.JoinFlow(ctx, code) {
		return nil, errors.Newf("%s: %s", ws.manager.Status().Error, code)
	}
	return ws.manager.Session(), nil
}

func (ws *workspace) Close() {
	ws.manager.Close()
	if err := ws.db.Close(); err != nil {
		logger.Warnw("Failed to close database", logger.FieldError, err)
	}
}
