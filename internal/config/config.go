// Package config provides configuration loading and the filesystem layout.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fuseinfotech/send2crm/internal/constants"
	"github.com/fuseinfotech/send2crm/internal/validate"
	"github.com/fuseinfotech/send2crm/internal/version"
)

const (
	DefaultPluginSlug      = "send2crm"
	DefaultMenuName        = "Send2CRM"
	DefaultListen          = "127.0.0.1:8787"
	DefaultAPIBaseURL      = "https://api.github.com"
	DefaultRawBaseURL      = "https://raw.githubusercontent.com"
	DefaultCDNBaseURL      = "https://cdn.jsdelivr.net/gh"
	DefaultOwner           = "FuseInfoTech"
	DefaultRepo            = "send2crmjs"
	DefaultMinimumVersion  = "1.0.0"
	DefaultAssetFile       = "send2crm.min.js"
	DefaultHashFile        = "send2crm.sri"
	DefaultTagPrefix       = "v"
	DefaultMetadataTimeout = constants.ReleaseMetadataTimeout
	DefaultDownloadTimeout = constants.AssetDownloadTimeout
)

// Config is the full application configuration.
type Config struct {
	Home          string         `mapstructure:"home" yaml:"home"`
	PluginSlug    string         `mapstructure:"pluginSlug" yaml:"pluginSlug"`
	MenuName      string         `mapstructure:"menuName" yaml:"menuName"`
	Listen        string         `mapstructure:"listen" yaml:"listen"`
	PublicBaseURL string         `mapstructure:"publicBaseURL" yaml:"publicBaseURL"`
	Logging       LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Releases      ReleasesConfig `mapstructure:"releases" yaml:"releases"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json or text
}

// ReleasesConfig describes where snippet releases are published.
type ReleasesConfig struct {
	APIBaseURL      string        `mapstructure:"apiBaseURL" yaml:"apiBaseURL"`
	RawBaseURL      string        `mapstructure:"rawBaseURL" yaml:"rawBaseURL"`
	CDNBaseURL      string        `mapstructure:"cdnBaseURL" yaml:"cdnBaseURL"`
	Owner           string        `mapstructure:"owner" yaml:"owner"`
	Repo            string        `mapstructure:"repo" yaml:"repo"`
	MinimumVersion  string        `mapstructure:"minimumVersion" yaml:"minimumVersion"`
	AssetFile       string        `mapstructure:"assetFile" yaml:"assetFile"`
	HashFile        string        `mapstructure:"hashFile" yaml:"hashFile"`
	TagPrefix       string        `mapstructure:"tagPrefix" yaml:"tagPrefix"`
	MetadataTimeout time.Duration `mapstructure:"metadataTimeout" yaml:"metadataTimeout"`
	DownloadTimeout time.Duration `mapstructure:"downloadTimeout" yaml:"downloadTimeout"`
}

// WithDefaults returns a copy of c with empty values replaced by defaults.
// TagPrefix is left alone once the releases block has been touched, since an
// empty prefix is a legitimate choice for repositories tagging "1.2.3".
func (c Config) WithDefaults() *Config {
	out := c
	if out.Home == "" {
		out.Home = GetHome()
	}
	out.Home = ExpandPath(out.Home)
	if out.PluginSlug == "" {
		out.PluginSlug = DefaultPluginSlug
	}
	if out.MenuName == "" {
		out.MenuName = DefaultMenuName
	}
	if out.Listen == "" {
		out.Listen = DefaultListen
	}
	if out.PublicBaseURL == "" {
		out.PublicBaseURL = "http://" + out.Listen + "/assets"
	}
	out.PublicBaseURL = strings.TrimRight(out.PublicBaseURL, "/")
	if out.Logging.Level == "" {
		out.Logging.Level = "info"
	}
	if out.Logging.Format == "" {
		out.Logging.Format = "text"
	}

	r := &out.Releases
	untouched := *r == (ReleasesConfig{})
	if r.APIBaseURL == "" {
		r.APIBaseURL = DefaultAPIBaseURL
	}
	if r.RawBaseURL == "" {
		r.RawBaseURL = DefaultRawBaseURL
	}
	if r.CDNBaseURL == "" {
		r.CDNBaseURL = DefaultCDNBaseURL
	}
	if r.Owner == "" {
		r.Owner = DefaultOwner
	}
	if r.Repo == "" {
		r.Repo = DefaultRepo
	}
	if r.MinimumVersion == "" {
		r.MinimumVersion = DefaultMinimumVersion
	}
	if r.AssetFile == "" {
		r.AssetFile = DefaultAssetFile
	}
	if r.HashFile == "" {
		r.HashFile = DefaultHashFile
	}
	if untouched {
		r.TagPrefix = DefaultTagPrefix
	}
	if r.MetadataTimeout <= 0 {
		r.MetadataTimeout = DefaultMetadataTimeout
	}
	if r.DownloadTimeout <= 0 {
		r.DownloadTimeout = DefaultDownloadTimeout
	}
	r.APIBaseURL = strings.TrimRight(r.APIBaseURL, "/")
	r.RawBaseURL = strings.TrimRight(r.RawBaseURL, "/")
	r.CDNBaseURL = strings.TrimRight(r.CDNBaseURL, "/")
	return &out
}

// Validate reports configuration values that would make the service unusable.
func (c *Config) Validate() error {
	if !validate.Ident(c.PluginSlug) {
		return fmt.Errorf("config: invalid pluginSlug %q", c.PluginSlug)
	}
	for name, raw := range map[string]string{
		"releases.apiBaseURL": c.Releases.APIBaseURL,
		"releases.rawBaseURL": c.Releases.RawBaseURL,
		"releases.cdnBaseURL": c.Releases.CDNBaseURL,
		"publicBaseURL":       c.PublicBaseURL,
	} {
		if err := validate.HTTPURL(raw); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if !validate.Ident(c.Releases.Owner) || !validate.Ident(c.Releases.Repo) {
		return fmt.Errorf("config: invalid release repository %q/%q", c.Releases.Owner, c.Releases.Repo)
	}
	if !version.Valid(c.Releases.MinimumVersion) {
		return fmt.Errorf("config: releases.minimumVersion %q is not a semantic version", c.Releases.MinimumVersion)
	}
	return nil
}
