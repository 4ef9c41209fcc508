// Package testutil holds helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	configstore "github.com/fuseinfotech/send2crm/internal/config/store"
)

// OpenStore creates a config store in a temporary directory. The store is
// closed when the test finishes.
func OpenStore(t testing.TB) *configstore.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "config.db")
	store, err := configstore.Open(configstore.Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
