// Package releases reads the published versions of the snippet from the
// GitHub releases API.
package releases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuseinfotech/send2crm/internal/config"
	"github.com/fuseinfotech/send2crm/internal/constants"
	"github.com/fuseinfotech/send2crm/internal/observability"
	"github.com/fuseinfotech/send2crm/internal/version"
)

// ErrNotFound is returned by Find when no release carries the requested version.
var ErrNotFound = errors.New("releases: version not found")

// Config locates the release index.
type Config struct {
	APIBaseURL     string
	Owner          string
	Repo           string
	MinimumVersion string
	Timeout        time.Duration
	UserAgent      string
}

// ConfigFrom builds a resolver Config from the application configuration.
func ConfigFrom(rc config.ReleasesConfig) Config {
	return Config{
		APIBaseURL:     rc.APIBaseURL,
		Owner:          rc.Owner,
		Repo:           rc.Repo,
		MinimumVersion: rc.MinimumVersion,
		Timeout:        rc.MetadataTimeout,
	}
}

// Asset is a file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Release is one entry of the release index.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
	Assets      []Asset   `json:"assets,omitempty"`
}

// Version returns the tag without its leading "v".
func (r Release) Version() string {
	return version.StripV(r.TagName)
}

// Result is the outcome of FetchReleases. Releases is only set on success.
type Result struct {
	Success  bool      `json:"success"`
	Releases []Release `json:"releases,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Resolver fetches and filters the release index.
type Resolver struct {
	cfg       Config
	http      *http.Client
	logger    zerolog.Logger
	collector observability.Collector
}

// NewResolver creates a resolver. A nil collector disables metrics.
func NewResolver(cfg Config, logger zerolog.Logger, collector observability.Collector) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.ReleaseMetadataTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = constants.UserAgent
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if collector == nil {
		collector = observability.Noop()
	}
	return &Resolver{
		cfg:       cfg,
		http:      NewHTTPClient(cfg.Timeout),
		logger:    logger.With().Str("component", "releases").Logger(),
		collector: collector,
	}
}

// NewHTTPClient returns a client with the given timeout that only follows
// redirects to http(s) URLs.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= constants.MaxRedirects {
				return errors.New("too many redirects")
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to disallowed scheme: %s", req.URL.Scheme)
			}
			return nil
		},
	}
}

// IndexURL returns the release index endpoint.
func (r *Resolver) IndexURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/releases", r.cfg.APIBaseURL, url.PathEscape(r.cfg.Owner), url.PathEscape(r.cfg.Repo))
}

// FetchReleases performs one request against the release index and returns
// the releases at or above the minimum version, in index order. Failures are
// reported in the Result rather than as an error.
func (r *Resolver) FetchReleases(ctx context.Context) Result {
	start := time.Now()
	all, err := r.fetch(ctx)
	if err != nil {
		r.collector.ObserveReleaseFetch(observability.ResultFailure, time.Since(start))
		r.logger.Warn().Err(err).Str("url", r.IndexURL()).Msg("release index fetch failed")
		return Result{Success: false, Message: err.Error()}
	}
	r.collector.ObserveReleaseFetch(observability.ResultSuccess, time.Since(start))

	kept, skipped := FilterByMinimumVersion(all, r.cfg.MinimumVersion)
	if len(skipped) > 0 {
		r.logger.Info().Strs("tags", skipped).Msg("ignoring releases without a semantic version tag")
	}
	r.logger.Debug().Int("total", len(all)).Int("kept", len(kept)).Str("minimum", r.cfg.MinimumVersion).Msg("fetched releases")
	if kept == nil {
		kept = []Release{}
	}
	return Result{Success: true, Releases: kept}
}

// Find returns the release whose tag names version, with or without "v".
func (r *Resolver) Find(ctx context.Context, v string) (Release, error) {
	res := r.FetchReleases(ctx)
	if !res.Success {
		return Release{}, fmt.Errorf("releases: %s", res.Message)
	}
	want := version.StripV(v)
	for _, rel := range res.Releases {
		if rel.Version() == want {
			return rel, nil
		}
	}
	return Release{}, fmt.Errorf("%w: %s", ErrNotFound, v)
}

func (r *Resolver) fetch(ctx context.Context) ([]Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.IndexURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from release index", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxReleaseIndexSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(data) > constants.MaxReleaseIndexSize {
		return nil, fmt.Errorf("release index exceeds maximum size (%d bytes)", constants.MaxReleaseIndexSize)
	}

	var out []Release
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid response from release index: %w", err)
	}
	if out == nil {
		// "null" decodes without error but is not a list.
		return nil, errors.New("invalid response from release index: expected a JSON list")
	}
	return out, nil
}
