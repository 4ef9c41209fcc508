// Package admin serves the settings page, its AJAX endpoints, the local
// asset copies, the public snippet and the metrics endpoint.
package admin

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fuseinfotech/send2crm/internal/assets"
	"github.com/fuseinfotech/send2crm/internal/constants"
	"github.com/fuseinfotech/send2crm/internal/observability"
	"github.com/fuseinfotech/send2crm/internal/releases"
	"github.com/fuseinfotech/send2crm/internal/settings"
)

//go:embed static
var staticFiles embed.FS

// ReleaseLister fetches the filtered release list.
type ReleaseLister interface {
	FetchReleases(ctx context.Context) releases.Result
}

// AssetStore is the part of the asset cache the admin surface uses.
type AssetStore interface {
	AssetFile() string
	Exists(version string) bool
	LocalPath(version string) string
	FetchHash(ctx context.Context, version string) (string, error)
	Download(ctx context.Context, version, expectedHash string) assets.File
}

// SnippetRenderer produces the public loader tag.
type SnippetRenderer interface {
	Render(ctx context.Context) (string, error)
	Invalidate()
}

// Deps are the collaborators of the admin server. Collector and Gatherer
// may be nil.
type Deps struct {
	Controller *settings.Controller
	Releases   ReleaseLister
	Assets     AssetStore
	Snippet    SnippetRenderer
	Authorizer Authorizer
	Collector  observability.Collector
	Gatherer   prometheus.Gatherer
	Logger     zerolog.Logger
}

// Server is the admin HTTP surface.
type Server struct {
	ctrl       *settings.Controller
	releases   ReleaseLister
	assets     AssetStore
	snippet    SnippetRenderer
	authorizer Authorizer
	collector  observability.Collector
	gatherer   prometheus.Gatherer
	logger     zerolog.Logger

	nonces  *NonceManager
	flashes *flashStore
	router  chi.Router
}

// New builds the server and its routes.
func New(d Deps) *Server {
	if d.Collector == nil {
		d.Collector = observability.Noop()
	}
	if d.Authorizer == nil {
		d.Authorizer = AuthorizerFunc(func(*http.Request) bool { return false })
	}
	s := &Server{
		ctrl:       d.Controller,
		releases:   d.Releases,
		assets:     d.Assets,
		snippet:    d.Snippet,
		authorizer: d.Authorizer,
		collector:  d.Collector,
		gatherer:   d.Gatherer,
		logger:     d.Logger.With().Str("component", "admin").Logger(),
		nonces:     NewNonceManager(constants.NonceTTL),
		flashes:    newFlashStore(constants.FlashTTL),
	}
	s.router = s.routes()
	return s
}

// Nonces exposes the nonce manager, mainly for tests and embedding callers.
func (s *Server) Nonces() *NonceManager { return s.nonces }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/settings", http.StatusFound)
	})
	r.Get("/settings", s.handleSettingsPage)
	r.Post("/options", s.handleCommit)
	r.Route("/ajax", func(r chi.Router) {
		r.Post("/fetch-releases", s.handleFetchReleases)
		r.Post("/download-release", s.handleDownloadRelease)
	})
	r.Get("/assets/{tag}/{file}", s.handleAsset)
	r.Get("/snippet", s.handleSnippet)

	static, err := fs.Sub(staticFiles, "static")
	if err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// observe logs each request and records it on the collector under its
// route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			s.collector.ObserveHTTPRequest(route, r.Method, status, elapsed)
			s.logger.Debug().
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Dur("elapsed", elapsed).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request served")
		}()
		next.ServeHTTP(ww, r)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: constants.HTTPReadHeaderTimeout,
		WriteTimeout:      constants.HTTPWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("admin server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.HTTPShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("admin server stopped")
	return nil
}
