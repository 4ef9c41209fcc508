package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable prefix for send2crm configuration.
const envPrefix = "SEND2CRM"

// Loader handles loading and merging configuration from file and environment.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so every
	// key is declared up front with its zero value. WithDefaults fills in
	// the real defaults afterwards.
	for _, key := range []string{
		"home", "pluginSlug", "menuName", "listen", "publicBaseURL",
		"logging.level", "logging.format",
		"releases.apiBaseURL", "releases.rawBaseURL", "releases.cdnBaseURL",
		"releases.owner", "releases.repo", "releases.minimumVersion",
		"releases.assetFile", "releases.hashFile", "releases.tagPrefix",
		"releases.metadataTimeout", "releases.downloadTimeout",
	} {
		_ = v.BindEnv(key)
	}

	return &Loader{v: v}
}

// Load reads configFile (defaults to the home config.yaml) and applies
// environment overrides. A missing file is not an error.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = GetPaths("").ConfigFile
	}
	configFile = ExpandPath(configFile)

	l.v.SetConfigFile(configFile)
	l.v.SetConfigType("yaml")

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	return cfg.WithDefaults(), nil
}

// ConfigFileUsed returns the file viper read, or "" when none was found.
func (l *Loader) ConfigFileUsed() string {
	if _, err := os.Stat(l.v.ConfigFileUsed()); err != nil {
		return ""
	}
	return l.v.ConfigFileUsed()
}
