// Package snippet renders the public loader tag that pulls in the send2crm
// script with the configured API key and domain.
package snippet

import (
	"bytes"
	"context"
	"html/template"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuseinfotech/send2crm/internal/config/store"
	"github.com/fuseinfotech/send2crm/internal/settings"
)

// Settings is the read side of the settings controller.
type Settings interface {
	GetSetting(ctx context.Context, key string, group settings.GroupRef, def string) string
}

// Locator resolves where a script version is loaded from.
type Locator interface {
	ScriptURL(version string, useCDN bool) string
}

// Config is the loader snippet as seen by the template.
type Config struct {
	Location  string
	Namespace string
	APIDomain string
	APIKey    string
	Integrity string
}

var loaderTemplate = template.Must(template.New("loader").Parse(
	`<script>(function(s,e,n,d2,cr,h,m){n[e]=n[e]||{};m=document.createElement('script');` +
		`m.onload=function(){n[e].init(d2,cr);};m.src=s;` +
		`if(h){m.integrity=h;m.crossOrigin='anonymous';}` +
		`document.head.appendChild(m);})({{.Location}},{{.Namespace}},window,{{.APIDomain}},{{.APIKey}},{{.Integrity}});</script>`))

// Renderer builds the loader tag and caches it until the settings change.
type Renderer struct {
	settings Settings
	locator  Locator
	slug     string
	version  string
	logger   zerolog.Logger

	mu     sync.Mutex
	cached *string
	gen    uint64 // bumped by Invalidate
}

// NewRenderer creates a renderer. version is appended to the script URL as
// the "ver" query parameter.
func NewRenderer(s Settings, locator Locator, slug, version string, logger zerolog.Logger) *Renderer {
	return &Renderer{
		settings: s,
		locator:  locator,
		slug:     slug,
		version:  version,
		logger:   logger.With().Str("component", "snippet").Logger(),
	}
}

// Resolve reads the snippet configuration. ok is false when the location,
// key or domain is missing.
func (r *Renderer) Resolve(ctx context.Context) (Config, bool) {
	get := func(key string) string { return r.settings.GetSetting(ctx, key, "", "") }

	cfg := Config{
		Namespace: r.slug,
		APIKey:    get(settings.FieldAPIKey),
		APIDomain: get(settings.FieldAPIDomain),
	}
	if v := get(settings.FieldJSVersion); v != "" {
		cfg.Location = r.locator.ScriptURL(v, get(settings.FieldUseCDN) == "1")
		if r.version != "" {
			cfg.Location += "?ver=" + r.version
		}
		cfg.Integrity = get(settings.FieldJSHash)
	}
	ok := cfg.Location != "" && cfg.APIKey != "" && cfg.APIDomain != ""
	return cfg, ok
}

// Render returns the loader tag, or an empty string when the snippet is not
// configured yet.
func (r *Renderer) Render(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.cached != nil {
		out := *r.cached
		r.mu.Unlock()
		return out, nil
	}
	gen := r.gen
	r.mu.Unlock()

	cfg, ok := r.Resolve(ctx)
	out := ""
	if ok {
		var buf bytes.Buffer
		if err := loaderTemplate.Execute(&buf, cfg); err != nil {
			return "", err
		}
		out = buf.String()
	} else {
		r.logger.Warn().
			Bool("has_location", cfg.Location != "").
			Bool("has_api_key", cfg.APIKey != "").
			Bool("has_api_domain", cfg.APIDomain != "").
			Msg("send2crm is not configured, snippet skipped")
	}

	// A render that raced an invalidation may have read stale settings, so
	// it is returned but not cached.
	r.mu.Lock()
	if r.gen == gen {
		r.cached = &out
	}
	r.mu.Unlock()
	return out, nil
}

// Invalidate drops the cached tag.
func (r *Renderer) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.gen++
	r.mu.Unlock()
}

// WatchStore invalidates the cache whenever the option store changes, until
// ctx is cancelled.
func (r *Renderer) WatchStore(ctx context.Context, s *store.Store, interval time.Duration) error {
	events, err := s.Watch(ctx, interval)
	if err != nil {
		return err
	}
	go func() {
		for ev := range events {
			r.logger.Debug().Str("updated", ev.Snapshot.LastUpdated).Msg("options changed, dropping cached snippet")
			r.Invalidate()
		}
	}()
	return nil
}
