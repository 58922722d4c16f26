// =============================================================================
// Paycom Distribution - Reference Data Cache
// =============================================================================
//
// This module keeps the segment table and the title table in memory between
// runs. Each table owns an independent cache entry with its own expiry:
//
//   - An entry is valid while now <= ExpiresAt.
//   - Reading a valid entry never blocks, not even on a reload of the
//     other table.
//   - Reading an expired (or never loaded) entry reloads it synchronously.
//     Concurrent callers on the same table share a single reload; a caller
//     whose context ends stops waiting without failing the others.
//   - A reload is a full rebuild that replaces the entry atomically. A failed
//     reload leaves the previous entry untouched and is returned to every
//     waiting caller; stale data is never served in its place.
//
// =============================================================================

package refdata

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/ginjaninja78/paycom-distribution/internal/types"
)

// DefaultTTL is the lifetime of a freshly loaded table.
const DefaultTTL = 24 * time.Hour

// Source loads fresh copies of the reference tables.
type Source interface {
	LoadSegments(ctx context.Context) (types.SegmentTable, error)
	LoadTitles(ctx context.Context) (types.TitleTable, error)
}

// =============================================================================
// CACHE ENTRY
// =============================================================================

// CacheEntry is one loaded table and its lifetime.
type CacheEntry[T any] struct {
	Data      T
	LoadedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the entry may still be served at now.
// A nil entry is never valid.
func (e *CacheEntry[T]) Valid(now time.Time) bool {
	return e != nil && !now.After(e.ExpiresAt)
}

// =============================================================================
// CACHE
// =============================================================================

// Cache is safe for concurrent use by any number of runs.
type Cache struct {
	clock  clockwork.Clock
	ttl    time.Duration
	logger *slog.Logger

	segments *table[types.SegmentTable]
	titles   *table[types.TitleTable]
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used for expiry. Tests pass a fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithTTL sets the lifetime of loaded tables. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the logger used to report reloads.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New returns an empty cache in front of src. Nothing is loaded until the
// first read.
func New(src Source, opts ...Option) *Cache {
	c := &Cache{
		clock:  clockwork.NewRealClock(),
		ttl:    DefaultTTL,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.segments = &table[types.SegmentTable]{
		name: types.SegmentReference,
		load: src.LoadSegments,
		size: func(t types.SegmentTable) int { return len(t) },
	}
	c.titles = &table[types.TitleTable]{
		name: types.TitleReference,
		load: src.LoadTitles,
		size: func(t types.TitleTable) int { return len(t) },
	}
	return c
}

// Segments returns the segment table, reloading it first if it has expired.
func (c *Cache) Segments(ctx context.Context) (types.SegmentTable, error) {
	return c.segments.get(ctx, c)
}

// Titles returns the title table, reloading it first if it has expired.
func (c *Cache) Titles(ctx context.Context) (types.TitleTable, error) {
	return c.titles.get(ctx, c)
}

// Invalidate drops both entries. The next read of each table reloads it.
func (c *Cache) Invalidate() {
	c.segments.entry.Store(nil)
	c.titles.entry.Store(nil)
	c.logger.Info("reference cache invalidated")
}

// TableStatus describes one cached table.
type TableStatus struct {
	Table     types.ReferenceTable `json:"table"`
	Loaded    bool                 `json:"loaded"`
	Valid     bool                 `json:"valid"`
	Entries   int                  `json:"entries"`
	LoadedAt  *time.Time           `json:"loaded_at,omitempty"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
}

// Status reports the state of both tables without loading anything.
func (c *Cache) Status() []TableStatus {
	now := c.clock.Now()
	return []TableStatus{
		c.segments.status(now),
		c.titles.status(now),
	}
}

// =============================================================================
// PER-TABLE STATE
// =============================================================================

type table[T any] struct {
	name  types.ReferenceTable
	load  func(context.Context) (T, error)
	size  func(T) int
	entry atomic.Pointer[CacheEntry[T]]
	group singleflight.Group
}

func (t *table[T]) get(ctx context.Context, c *Cache) (T, error) {
	// Fast path: a valid entry is served without touching the flight group.
	if e := t.entry.Load(); e.Valid(c.clock.Now()) {
		return e.Data, nil
	}

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	// The reload outlives any single caller; a caller that gives up only
	// stops waiting.
	flightCtx := context.WithoutCancel(ctx)
	ch := t.group.DoChan(string(t.name), func() (any, error) {
		// A caller that queued behind a finished reload sees the new entry.
		if e := t.entry.Load(); e.Valid(c.clock.Now()) {
			return e, nil
		}
		return t.reload(flightCtx, c)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			c.logger.Debug("reference reload shared", "table", t.name)
		}
		return res.Val.(*CacheEntry[T]).Data, nil
	}
}

func (t *table[T]) reload(ctx context.Context, c *Cache) (*CacheEntry[T], error) {
	started := c.clock.Now()

	data, err := t.load(ctx)
	if err != nil {
		c.logger.Error("reference reload failed", "table", t.name, "error", err)

		var loadErr *types.ReferenceLoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &types.ReferenceLoadError{Table: t.name, Err: err}
	}

	now := c.clock.Now()
	e := &CacheEntry[T]{Data: data, LoadedAt: now, ExpiresAt: now.Add(c.ttl)}
	t.entry.Store(e)

	c.logger.Info("reference table reloaded",
		"table", t.name,
		"rows", t.size(data),
		"expires_at", e.ExpiresAt,
		"took", now.Sub(started))
	return e, nil
}

func (t *table[T]) status(now time.Time) TableStatus {
	st := TableStatus{Table: t.name}

	e := t.entry.Load()
	if e == nil {
		return st
	}

	loadedAt, expiresAt := e.LoadedAt, e.ExpiresAt
	st.Loaded = true
	st.Valid = e.Valid(now)
	st.Entries = t.size(e.Data)
	st.LoadedAt = &loadedAt
	st.ExpiresAt = &expiresAt
	return st
}
