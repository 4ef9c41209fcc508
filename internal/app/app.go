// Package app assembles the send2crm components from a Config.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/fuseinfotech/send2crm/internal/admin"
	"github.com/fuseinfotech/send2crm/internal/assets"
	"github.com/fuseinfotech/send2crm/internal/config"
	configstore "github.com/fuseinfotech/send2crm/internal/config/store"
	"github.com/fuseinfotech/send2crm/internal/constants"
	"github.com/fuseinfotech/send2crm/internal/observability"
	"github.com/fuseinfotech/send2crm/internal/options"
	"github.com/fuseinfotech/send2crm/internal/reconcile"
	"github.com/fuseinfotech/send2crm/internal/releases"
	"github.com/fuseinfotech/send2crm/internal/settings"
	"github.com/fuseinfotech/send2crm/internal/snippet"
	"github.com/fuseinfotech/send2crm/internal/version"
)

// App holds the wired components. Close releases the option store.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      *configstore.Store
	Options    *options.Options
	Registry   *settings.Registry
	Controller *settings.Controller
	Releases   *releases.Resolver
	Assets     *assets.Cache
	Reconciler *reconcile.Reconciler
	Snippet    *snippet.Renderer
	Metrics    *prometheus.Registry
	Collector  observability.Collector
}

// New opens the option store under cfg.Home and wires every component.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	paths, err := config.EnsureDirs(cfg.Home)
	if err != nil {
		return nil, fmt.Errorf("app: prepare %s: %w", cfg.Home, err)
	}
	st, err := configstore.Open(configstore.Options{DBPath: paths.ConfigDB})
	if err != nil {
		return nil, err
	}
	a, err := newWithStore(cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func newWithStore(cfg *config.Config, st *configstore.Store, logger zerolog.Logger) (*App, error) {
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := observability.NewPrometheusCollector(metrics)

	reg := settings.NewRegistry(cfg.PluginSlug)
	if err := snippet.RegisterSettings(reg); err != nil {
		return nil, fmt.Errorf("app: register settings: %w", err)
	}
	if err := reconcile.RegisterSettings(reg); err != nil {
		return nil, fmt.Errorf("app: register version manager: %w", err)
	}

	opts := options.New(st, logger)
	ctrl := settings.NewController(reg, opts, cfg.MenuName, logger)
	ctrl.InitializeSettings()

	cache := assets.NewCache(assets.ConfigFrom(cfg), logger, collector)
	rec := reconcile.New(cache, cfg.PluginSlug, logger, collector)
	rec.Attach(opts, reg)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Options:    opts,
		Registry:   reg,
		Controller: ctrl,
		Releases:   releases.NewResolver(releases.ConfigFrom(cfg.Releases), logger, collector),
		Assets:     cache,
		Reconciler: rec,
		Snippet:    snippet.NewRenderer(ctrl, cache, cfg.PluginSlug, version.String(), logger),
		Metrics:    metrics,
		Collector:  collector,
	}, nil
}

// Admin builds the admin HTTP server guarded by basic auth.
func (a *App) Admin() *admin.Server {
	return admin.New(admin.Deps{
		Controller: a.Controller,
		Releases:   a.Releases,
		Assets:     a.Assets,
		Snippet:    a.Snippet,
		Authorizer: admin.NewBasicAuth(a.Store, a.Config.MenuName, a.Logger),
		Collector:  a.Collector,
		Gatherer:   a.Metrics,
		Logger:     a.Logger,
	})
}

// Serve runs the admin server on the configured address until ctx ends.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Snippet.WatchStore(ctx, a.Store, constants.OptionWatchInterval); err != nil {
		a.Logger.Warn().Err(err).Msg("option watcher unavailable, snippet cache refreshes on commit only")
	}
	return a.Admin().ListenAndServe(ctx, a.Config.Listen)
}

// Uninstall removes every option owned by the plugin and the local asset copies.
func (a *App) Uninstall(ctx context.Context) (int64, error) {
	removed, err := a.Store.DeleteOptionsWithPrefix(ctx, a.Config.PluginSlug+"_")
	if err != nil {
		return 0, err
	}
	if err := a.Assets.RemoveAll(); err != nil {
		return removed, fmt.Errorf("app: remove assets: %w", err)
	}
	a.Logger.Info().Int64("options", removed).Str("assets", a.Assets.Dir()).Msg("send2crm data removed")
	return removed, nil
}

// Close releases the option store.
func (a *App) Close() error {
	return a.Store.Close()
}
