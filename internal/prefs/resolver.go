package prefs

import (
	"context"
	"log/slog"
)

// DefaultFunc returns the backend-wide default page size.
type DefaultFunc func(ctx context.Context) (int, error)

// Resolver picks the initial page size for a list: the stored preference when
// present, else the backend default, else a fixed fallback.
type Resolver struct {
	store    Store
	defaults DefaultFunc
	fallback int
	logger   *slog.Logger
}

// NewResolver constructs a Resolver. Fallback values below 1 become 10.
func NewResolver(store Store, defaults DefaultFunc, fallback int, logger *slog.Logger) *Resolver {
	if fallback <= 0 {
		fallback = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, defaults: defaults, fallback: fallback, logger: logger}
}

// Store returns the underlying preference store.
func (r *Resolver) Store() Store {
	if r == nil {
		return nil
	}
	return r.store
}

// WithStore returns a copy of the resolver reading from store.
func (r *Resolver) WithStore(store Store) *Resolver {
	clone := *r
	clone.store = store
	return &clone
}

// PageSize resolves the page size for key. It never fails; lookup errors are
// logged and the next source is consulted.
func (r *Resolver) PageSize(ctx context.Context, key string) int {
	if r.store != nil && key != "" {
		value, ok, err := r.store.Get(ctx, key)
		switch {
		case err != nil:
			r.logger.Warn("read page size preference", slog.String("key", key), slog.Any("error", err))
		case ok && value > 0:
			return value
		}
	}
	if r.defaults != nil {
		value, err := r.defaults(ctx)
		if err != nil {
			r.logger.Warn("load default page size", slog.Any("error", err))
		} else if value > 0 {
			return value
		}
	}
	return r.fallback
}
