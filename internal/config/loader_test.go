package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderMissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	cfg, err := NewLoader().Load(filepath.Join(home, "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, DefaultPluginSlug, cfg.PluginSlug)
	assert.Equal(t, DefaultOwner, cfg.Releases.Owner)
	assert.Equal(t, DefaultRepo, cfg.Releases.Repo)
	assert.Equal(t, DefaultMinimumVersion, cfg.Releases.MinimumVersion)
	assert.Equal(t, DefaultTagPrefix, cfg.Releases.TagPrefix)
	assert.Equal(t, 15*time.Second, cfg.Releases.MetadataTimeout)
	assert.Equal(t, 60*time.Second, cfg.Releases.DownloadTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoaderReadsFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: 0.0.0.0:9000
logging:
  level: debug
  format: json
releases:
  owner: acme
  repo: tracker
  minimumVersion: 1.20.0
  tagPrefix: ""
  apiBaseURL: https://github.example.com/api/
  metadataTimeout: 5s
`), 0o644))

	loader := NewLoader()
	cfg, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, loader.ConfigFileUsed())
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "acme", cfg.Releases.Owner)
	assert.Equal(t, "tracker", cfg.Releases.Repo)
	assert.Equal(t, "1.20.0", cfg.Releases.MinimumVersion)
	assert.Equal(t, "", cfg.Releases.TagPrefix)
	assert.Equal(t, "https://github.example.com/api", cfg.Releases.APIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.Releases.MetadataTimeout)
	assert.Equal(t, "http://0.0.0.0:9000/assets", cfg.PublicBaseURL)
}

func TestLoaderEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)
	t.Setenv("SEND2CRM_RELEASES_OWNER", "from-env")

	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("releases:\n  owner: from-file\n"), 0o644))

	cfg, err := NewLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Releases.Owner)
}

func TestLoaderRejectsMalformedFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("releases: [unterminated"), 0o644))

	_, err := NewLoader().Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad slug", mutate: func(c *Config) { c.PluginSlug = "bad slug" }, wantErr: true},
		{name: "file cdn", mutate: func(c *Config) { c.Releases.CDNBaseURL = "file:///etc" }, wantErr: true},
		{name: "bad owner", mutate: func(c *Config) { c.Releases.Owner = "../x" }, wantErr: true},
		{name: "bad minimum", mutate: func(c *Config) { c.Releases.MinimumVersion = "latest" }, wantErr: true},
		{name: "prefixed minimum", mutate: func(c *Config) { c.Releases.MinimumVersion = "v1.20" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Config{Home: "/tmp/send2crm"}.WithDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
