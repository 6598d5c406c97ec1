package testsupport

import (
	"testing"

	"aimatrix/internal/assetstore"
	"aimatrix/internal/clock"
	"aimatrix/internal/config"
)

// MustOpenStore opens an asset store against the test config and registers
// cleanup. Tests fail immediately if the store cannot be opened.
func MustOpenStore(t testing.TB, cfg *config.Config, clk clock.Clock) *assetstore.Store {
	t.Helper()

	store, err := assetstore.Open(cfg, clk)
	if err != nil {
		t.Fatalf("open asset store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
