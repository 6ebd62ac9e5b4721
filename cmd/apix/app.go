package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/blackcoderx/apix/pkg/client"
	"github.com/blackcoderx/apix/pkg/core"
	"github.com/blackcoderx/apix/pkg/envstore"
	"github.com/blackcoderx/apix/pkg/history"
	"github.com/blackcoderx/apix/pkg/logging"
	"github.com/blackcoderx/apix/pkg/storage"
	"github.com/blackcoderx/apix/pkg/store"
)

// app holds the components one command invocation works with.
type app struct {
	settings    core.Settings
	logger      *zap.Logger
	dir         string
	sessionPath string
	draftsPath  string

	api   *client.Client
	proxy *client.Proxy
	envs  *envstore.Store
	kv    *history.SQLiteKV
	store *store.Store
}

// newApp wires the components from the loaded configuration and restores
// the workspace drafts and history.
func newApp(ctx context.Context) (*app, error) {
	settings, err := core.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat})
	if err != nil {
		return nil, fmt.Errorf("invalid log configuration: %w", err)
	}

	a := &app{
		settings:    settings,
		logger:      logger,
		dir:         core.Dir("."),
		sessionPath: client.SessionPath(core.Dir(".")),
	}
	a.draftsPath = storage.GetDraftsPath(a.dir, settings.Workspace)

	session, err := client.LoadSession(a.sessionPath)
	if err != nil {
		logger.Warn("ignoring unreadable session", logging.Path(a.sessionPath), zap.Error(err))
		session = &client.Session{}
	}

	a.api, err = client.New(settings.APIURL, client.WithSession(session), client.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	a.proxy = client.NewProxy(settings.ProxyURL,
		client.WithTokenSource(a.api.Token),
		client.WithRateLimit(settings.RateLimit),
		client.WithLogger(logger),
	)
	a.envs = envstore.New(a.api, a.api, logger)

	a.kv, err = history.OpenSQLite(core.HistoryPath(a.dir))
	if err != nil {
		return nil, err
	}
	cache := history.New(a.kv, settings.Workspace,
		history.WithMaxEntries(settings.HistoryMax),
		history.WithTTL(settings.HistoryTTL),
		history.WithLogger(logger),
	)

	opts := []store.Option{
		store.WithProxy(a.proxy),
		store.WithEnvironments(a.envs),
		store.WithHistory(cache),
		store.WithWorkspace(settings.Workspace),
		store.WithLogger(logger),
	}
	if a.api.LoggedIn() {
		opts = append(opts, store.WithCollectionService(a.api))
	}
	a.store = store.New(opts...)

	if err := a.store.LoadDrafts(a.draftsPath); err != nil {
		a.close()
		return nil, err
	}
	if err := a.store.LoadHistory(ctx); err != nil {
		logger.Warn("history unavailable", zap.Error(err))
	}
	return a, nil
}

// sync refreshes environments and collections from the backend. Without a
// session there is nothing to fetch. A failure leaves the offline copies in
// place.
func (a *app) sync(ctx context.Context) {
	if !a.api.LoggedIn() {
		return
	}
	if err := a.envs.FetchEnvironments(ctx); err != nil {
		a.warnRemote("environments", err)
	}
	if err := a.store.LoadCollections(ctx, a.settings.Workspace); err != nil {
		a.warnRemote("collections", err)
	}
}

func (a *app) warnRemote(what string, err error) {
	if errors.Is(err, client.ErrSessionExpired) {
		a.logger.Warn("session expired, run apix login", zap.String("fetch", what))
		return
	}
	a.logger.Warn("fetch failed, using offline copy", zap.String("fetch", what), zap.Error(err))
}

// requireLogin fails with the backend's wording when there is no session.
func (a *app) requireLogin() error {
	if !a.api.LoggedIn() {
		return envstore.ErrNotAuthenticated
	}
	return nil
}

// save persists the drafts of the workspace.
func (a *app) save() error {
	return a.store.SaveDrafts(a.draftsPath)
}

// requestID returns id, or the active request when id is empty.
func (a *app) requestID(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	req, ok := a.store.Snapshot().ActiveRequest()
	if !ok {
		return "", errors.New("no active request, create one with apix request new")
	}
	return req.ID, nil
}

func (a *app) close() {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			a.logger.Warn("closing history database failed", zap.Error(err))
		}
	}
	logging.Sync(a.logger)
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
