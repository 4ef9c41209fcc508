package config

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the default ~/.send2crm home directory.
const HomeEnv = "SEND2CRM_HOME"

// Paths contains all filesystem locations used by send2crm.
type Paths struct {
	Home       string // Root directory (~/.send2crm)
	ConfigFile string // YAML configuration file
	ConfigDB   string // SQLite option store
	AssetsDir  string // Locally cached snippet versions, one directory per tag
	Logs       string // Logs directory
	TempDir    string // Temporary files (partial downloads)
}

// GetPaths returns the directory layout rooted at home.
// Empty home resolves to GetHome().
func GetPaths(home string) Paths {
	if home == "" {
		home = GetHome()
	}
	home = ExpandPath(home)

	return Paths{
		Home:       home,
		ConfigFile: filepath.Join(home, "config.yaml"),
		ConfigDB:   filepath.Join(home, "config.db"),
		AssetsDir:  filepath.Join(home, "uploads", "send2crm"),
		Logs:       filepath.Join(home, "logs"),
		TempDir:    filepath.Join(home, "tmp"),
	}
}

// GetHome returns the send2crm home directory, honouring SEND2CRM_HOME.
func GetHome() string {
	if env := os.Getenv(HomeEnv); env != "" {
		return ExpandPath(env)
	}
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".send2crm")
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureDirs creates the directory structure rooted at home if it does not exist.
func EnsureDirs(home string) (Paths, error) {
	paths := GetPaths(home)

	dirs := []string{
		paths.Home,
		paths.AssetsDir,
		paths.Logs,
		paths.TempDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
	}

	return paths, nil
}
