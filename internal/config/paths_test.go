package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHomeHonoursEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	assert.Equal(t, dir, GetHome())
}

func TestGetHomeDefault(t *testing.T) {
	t.Setenv(HomeEnv, "")

	userHome, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(userHome, ".send2crm"), GetHome())
}

func TestGetPaths(t *testing.T) {
	paths := GetPaths("/srv/send2crm")

	assert.Equal(t, "/srv/send2crm/config.yaml", paths.ConfigFile)
	assert.Equal(t, "/srv/send2crm/config.db", paths.ConfigDB)
	assert.Equal(t, "/srv/send2crm/uploads/send2crm", paths.AssetsDir)
	assert.Equal(t, "/srv/send2crm/logs", paths.Logs)
}

func TestEnsureDirs(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")

	paths, err := EnsureDirs(home)
	require.NoError(t, err)

	for _, dir := range []string{paths.Home, paths.AssetsDir, paths.Logs, paths.TempDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"~", home},
		{"/absolute/path", "/absolute/path"},
		{"", ""},
		{"~user", "~user"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandPath(tt.input), "ExpandPath(%q)", tt.input)
	}
}
