package main

import (
	"context"

	"github.com/sells-group/airport-borders/internal/store"
)

// initStore opens the configured run store and migrates it.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}
