package testsupport

import (
	"testing"

	"remix/internal/catalog"
	"remix/internal/config"
)

// MustOpenCatalog opens the catalog store for cfg and closes it when the
// test finishes.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close catalog: %v", err)
		}
	})
	return store
}
