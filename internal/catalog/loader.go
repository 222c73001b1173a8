package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoCatalog is returned when neither the source nor the cache can supply a
// catalog. Nothing can be computed without one, so callers treat it as an
// unrecoverable startup error.
var ErrNoCatalog = errors.New("no catalog available")

// Cache persists the last fetched catalog together with its version stamp.
type Cache interface {
	// LoadCatalog returns the cached catalog document. found is false when
	// nothing has been cached yet.
	LoadCatalog(ctx context.Context) (data []byte, stamp string, found bool, err error)

	// SaveCatalog replaces the cached catalog document.
	SaveCatalog(ctx context.Context, data []byte, stamp string) error
}

// Loader resolves the session catalog: cache first, then the source when its
// version stamp differs from the cached one.
//
// Thread-safety: Loader is safe for concurrent use.
type Loader struct {
	source  Source
	cache   Cache
	limiter *rate.Limiter
	logger  *slog.Logger

	mu      sync.Mutex
	current *Catalog
	stamp   string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRefreshInterval limits how often the source is asked for its version
// stamp. Zero disables the limit.
func WithRefreshInterval(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d <= 0 {
			l.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		l.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader. cache may be nil.
func NewLoader(source Source, cache Cache, opts ...LoaderOption) *Loader {
	l := &Loader{
		source:  source,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the catalog for a new session.
//
// A cached catalog is used immediately; the source is then consulted and
// replaces it only when the stamps differ. Source failures fall back to the
// cached catalog. With no cache and a failing source Load returns an error
// wrapping ErrNoCatalog.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	l.loadCached(ctx)

	cat, _, err := l.Refresh(ctx)
	if err == nil {
		return cat, nil
	}

	l.mu.Lock()
	current := l.current
	l.mu.Unlock()

	if current == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCatalog, err)
	}
	l.logger.Warn("catalog refresh failed, using cached catalog", "error", err)
	return current, nil
}

// Refresh checks the source's version stamp and fetches the catalog when it
// differs from the current one. changed reports whether a new catalog was
// fetched. On error the current catalog (possibly nil) is returned unchanged.
func (l *Loader) Refresh(ctx context.Context) (cat *Catalog, changed bool, err error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return l.Current(), false, fmt.Errorf("wait for refresh slot: %w", err)
	}

	stamp, err := l.source.VersionStamp(ctx)
	if err != nil {
		return l.Current(), false, fmt.Errorf("get catalog version stamp: %w", err)
	}

	l.mu.Lock()
	if l.current != nil && l.stamp == stamp {
		current := l.current
		l.mu.Unlock()
		l.logger.Debug("catalog up to date", "stamp", stamp)
		return current, false, nil
	}
	l.mu.Unlock()

	fetched, fetchedStamp, err := l.source.Catalog(ctx)
	if err != nil {
		return l.Current(), false, fmt.Errorf("fetch catalog: %w", err)
	}
	if fetchedStamp != stamp {
		l.logger.Debug("catalog changed during refresh", "checked", stamp, "fetched", fetchedStamp)
		stamp = fetchedStamp
	}

	if l.cache != nil {
		data, err := json.Marshal(fetched)
		if err == nil {
			err = l.cache.SaveCatalog(ctx, data, stamp)
		}
		if err != nil {
			l.logger.Warn("failed to cache catalog", "error", err)
		}
	}

	l.mu.Lock()
	l.current = fetched
	l.stamp = stamp
	l.mu.Unlock()

	l.logger.Info("catalog loaded", "stamp", stamp, "items", fetched.Len())
	return fetched, true, nil
}

// Current returns the catalog in use, or nil before the first load.
func (l *Loader) Current() *Catalog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Stamp returns the version stamp of the current catalog.
func (l *Loader) Stamp() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stamp
}

// loadCached seeds the loader from the cache. Cache problems are logged and
// otherwise ignored; the source is still consulted afterwards.
func (l *Loader) loadCached(ctx context.Context) {
	if l.cache == nil {
		return
	}
	data, stamp, found, err := l.cache.LoadCatalog(ctx)
	if err != nil {
		l.logger.Warn("failed to read catalog cache", "error", err)
		return
	}
	if !found {
		return
	}
	cat, err := DecodeJSON(data)
	if err != nil {
		l.logger.Warn("discarding unreadable catalog cache", "error", err)
		return
	}

	l.mu.Lock()
	l.current = cat
	l.stamp = stamp
	l.mu.Unlock()
	l.logger.Debug("catalog cache hit", "stamp", stamp, "items", cat.Len())
}
