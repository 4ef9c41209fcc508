// Package assets manages the per-version local copies of the snippet script
// and the remote locations it is published at.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"

	"github.com/fuseinfotech/send2crm/internal/config"
	"github.com/fuseinfotech/send2crm/internal/constants"
	"github.com/fuseinfotech/send2crm/internal/integrity"
	"github.com/fuseinfotech/send2crm/internal/observability"
	"github.com/fuseinfotech/send2crm/internal/releases"
	"github.com/fuseinfotech/send2crm/internal/version"
)

// Config describes where assets live locally and remotely.
type Config struct {
	Dir             string
	PublicBaseURL   string
	RawBaseURL      string
	CDNBaseURL      string
	Owner           string
	Repo            string
	AssetFile       string
	HashFile        string
	TagPrefix       string
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	UserAgent       string
}

// ConfigFrom builds an asset Config from the application configuration.
func ConfigFrom(cfg *config.Config) Config {
	rc := cfg.Releases
	return Config{
		Dir:             config.GetPaths(cfg.Home).AssetsDir,
		PublicBaseURL:   cfg.PublicBaseURL,
		RawBaseURL:      rc.RawBaseURL,
		CDNBaseURL:      rc.CDNBaseURL,
		Owner:           rc.Owner,
		Repo:            rc.Repo,
		AssetFile:       rc.AssetFile,
		HashFile:        rc.HashFile,
		TagPrefix:       rc.TagPrefix,
		MetadataTimeout: rc.MetadataTimeout,
		DownloadTimeout: rc.DownloadTimeout,
	}
}

// File is the outcome of downloading one asset file.
type File struct {
	File    string `json:"file"`
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
	Path    string `json:"-"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Cache is the local asset directory plus the clients used to fill it.
type Cache struct {
	cfg       Config
	meta      *http.Client
	download  *http.Client
	logger    zerolog.Logger
	collector observability.Collector
}

// NewCache creates a cache. A nil collector disables metrics.
func NewCache(cfg Config, logger zerolog.Logger, collector observability.Collector) *Cache {
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = constants.ReleaseMetadataTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = constants.AssetDownloadTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = constants.UserAgent
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.RawBaseURL = strings.TrimRight(cfg.RawBaseURL, "/")
	cfg.CDNBaseURL = strings.TrimRight(cfg.CDNBaseURL, "/")
	if collector == nil {
		collector = observability.Noop()
	}
	return &Cache{
		cfg:       cfg,
		meta:      releases.NewHTTPClient(cfg.MetadataTimeout),
		download:  releases.NewHTTPClient(cfg.DownloadTimeout),
		logger:    logger.With().Str("component", "assets").Logger(),
		collector: collector,
	}
}

// Dir returns the root of the local asset directory.
func (c *Cache) Dir() string { return c.cfg.Dir }

// AssetFile returns the name of the script file.
func (c *Cache) AssetFile() string { return c.cfg.AssetFile }

// Tag returns the repository tag of version v.
func (c *Cache) Tag(v string) string {
	return version.Tag(c.cfg.TagPrefix, v)
}

func (c *Cache) checkVersion(v string) error {
	if !version.Valid(v) {
		return fmt.Errorf("assets: %q is not a valid release version", v)
	}
	return nil
}

// LocalPath returns where the script of version v is stored.
func (c *Cache) LocalPath(v string) string {
	return filepath.Join(c.cfg.Dir, c.Tag(v), c.cfg.AssetFile)
}

// Exists reports whether a local copy of version v is present.
func (c *Cache) Exists(v string) bool {
	if c.checkVersion(v) != nil {
		return false
	}
	info, err := os.Stat(c.LocalPath(v))
	return err == nil && info.Mode().IsRegular()
}

// PublicURL returns the URL the local copy of version v is served at.
func (c *Cache) PublicURL(v string) string {
	return c.cfg.PublicBaseURL + "/" + url.PathEscape(c.Tag(v)) + "/" + url.PathEscape(c.cfg.AssetFile)
}

// CDNURL returns "{cdn}/{owner}/{repo}@{tag}/{file}".
func (c *Cache) CDNURL(v, file string) string {
	return fmt.Sprintf("%s/%s/%s@%s/%s", c.cfg.CDNBaseURL, c.cfg.Owner, c.cfg.Repo, c.Tag(v), file)
}

// RawURL returns "{raw}/{owner}/{repo}/{tag}/{file}".
func (c *Cache) RawURL(v, file string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", c.cfg.RawBaseURL, c.cfg.Owner, c.cfg.Repo, c.Tag(v), file)
}

// ScriptURL returns where the snippet loads the script of version v from.
func (c *Cache) ScriptURL(v string, useCDN bool) string {
	if useCDN {
		return c.CDNURL(v, c.cfg.AssetFile)
	}
	return c.PublicURL(v)
}

// FetchHash reads the integrity hash published next to version v on the CDN.
func (c *Cache) FetchHash(ctx context.Context, v string) (string, error) {
	if err := c.checkVersion(v); err != nil {
		return "", err
	}
	target := c.CDNURL(v, c.cfg.HashFile)
	data, err := c.get(ctx, c.meta, target, constants.MaxHashFileSize)
	if err != nil {
		c.collector.IncHashFetch(observability.ResultFailure)
		return "", fmt.Errorf("assets: fetch hash for %s: %w", v, err)
	}
	hash := integrity.FromHashFile(data)
	if hash == "" {
		c.collector.IncHashFetch(observability.ResultFailure)
		return "", fmt.Errorf("assets: hash file for %s is empty", v)
	}
	if _, err := integrity.Parse(hash); err != nil {
		c.collector.IncHashFetch(observability.ResultFailure)
		return "", fmt.Errorf("assets: hash file for %s: %w", v, err)
	}
	c.collector.IncHashFetch(observability.ResultSuccess)
	return hash, nil
}

// Download stores the script of version v locally unless it is already
// present. When expectedHash is set the content must match it. The script
// must parse as JavaScript. The file only appears under its final name once
// every check has passed.
func (c *Cache) Download(ctx context.Context, v, expectedHash string) File {
	res := File{File: c.cfg.AssetFile}
	if err := c.checkVersion(v); err != nil {
		res.Message = err.Error()
		return res
	}
	dest := c.LocalPath(v)
	res.Path = dest
	res.URL = c.PublicURL(v)

	if c.Exists(v) {
		c.collector.IncAssetDownload(observability.ResultSkipped)
		res.Success, res.Skipped = true, true
		res.Message = "already downloaded"
		return res
	}

	if err := c.fetchTo(ctx, v, dest, expectedHash); err != nil {
		c.collector.IncAssetDownload(observability.ResultFailure)
		c.logger.Warn().Err(err).Str("version", v).Msg("asset download failed")
		res.Message = err.Error()
		return res
	}
	c.collector.IncAssetDownload(observability.ResultSuccess)
	c.logger.Info().Str("version", v).Str("path", dest).Msg("asset downloaded")
	res.Success = true
	return res
}

func (c *Cache) fetchTo(ctx context.Context, v, dest, expectedHash string) error {
	data, err := c.get(ctx, c.download, c.RawURL(v, c.cfg.AssetFile), constants.MaxAssetSize)
	if err != nil {
		return err
	}
	if expectedHash != "" {
		if err := integrity.VerifyReader(bytes.NewReader(data), expectedHash); err != nil {
			return err
		}
	}
	if _, err := goja.Compile(c.cfg.AssetFile, string(data), false); err != nil {
		return fmt.Errorf("downloaded file is not valid JavaScript: %w", err)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create asset directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			if rmErr := os.Remove(name); rmErr != nil && !os.IsNotExist(rmErr) {
				c.logger.Warn().Err(rmErr).Str("path", name).Msg("failed to remove temp file")
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	if err := os.Rename(name, dest); err != nil {
		return err
	}
	success = true
	return nil
}

// Remove deletes the local copy of version v and its directory when empty.
// A missing copy is not an error.
func (c *Cache) Remove(v string) error {
	if err := c.checkVersion(v); err != nil {
		return err
	}
	path := c.LocalPath(v)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("assets: remove %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		os.Remove(dir)
	}
	c.logger.Info().Str("version", v).Msg("local asset removed")
	return nil
}

// RemoveAll deletes the whole asset directory.
func (c *Cache) RemoveAll() error {
	if c.cfg.Dir == "" {
		return nil
	}
	return os.RemoveAll(c.cfg.Dir)
}

func (c *Cache) get(ctx context.Context, client *http.Client, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response from %s exceeds maximum size (%d bytes)", rawURL, limit)
	}
	return data, nil
}
