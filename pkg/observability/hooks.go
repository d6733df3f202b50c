// Package observability provides hooks for metrics, tracing, and logging.
//
// Instrumentation is optional: libraries call the registered hooks, and the
// defaults do nothing. Consumers register their own implementations at
// startup to receive events about placement runs, cache operations and API
// requests.
//
// # Usage
//
// Register hooks at startup, e.g. the bundled logger:
//
//	h := observability.NewLogHooks(logger)
//	observability.SetPlacementHooks(h)
//	observability.SetCacheHooks(h)
//	observability.SetHTTPHooks(h)
//
// Libraries call hooks to emit events:
//
//	observability.Placement().OnRunStart(ctx, name, total)
//	// ... place rows ...
//	observability.Placement().OnRunComplete(ctx, name, placed, duration, err)
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// =============================================================================
// Placement Hooks
// =============================================================================

// PlacementHooks receives events from placement runs.
type PlacementHooks interface {
	// OnRunStart is called once a run enters the running state.
	OnRunStart(ctx context.Context, composition string, particles int)

	// OnRowComplete is called after every composition row.
	OnRowComplete(ctx context.Context, molecule string, placed, corrections int, duration time.Duration)

	// OnRunComplete is called on every exit, with err nil on success.
	OnRunComplete(ctx context.Context, composition string, placed int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP API server.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records the response written for a request.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPlacementHooks is a no-op implementation of PlacementHooks.
type NoopPlacementHooks struct{}

func (NoopPlacementHooks) OnRunStart(context.Context, string, int)                         {}
func (NoopPlacementHooks) OnRowComplete(context.Context, string, int, int, time.Duration)  {}
func (NoopPlacementHooks) OnRunComplete(context.Context, string, int, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Registry
// =============================================================================

type registry struct {
	placement PlacementHooks
	cache     CacheHooks
	http      HTTPHooks
}

var defaults = registry{NoopPlacementHooks{}, NoopCacheHooks{}, NoopHTTPHooks{}}

var current atomic.Pointer[registry]

func init() { Reset() }

// update copies the registry, applies fn and publishes the result.
func update(fn func(r *registry)) {
	for {
		old := current.Load()
		next := *old
		fn(&next)
		if current.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetPlacementHooks registers h for placement events. nil is ignored.
func SetPlacementHooks(h PlacementHooks) {
	if h != nil {
		update(func(r *registry) { r.placement = h })
	}
}

// SetCacheHooks registers h for cache events. nil is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		update(func(r *registry) { r.cache = h })
	}
}

// SetHTTPHooks registers h for API events. nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		update(func(r *registry) { r.http = h })
	}
}

func Placement() PlacementHooks { return current.Load().placement }
func Cache() CacheHooks         { return current.Load().cache }
func HTTP() HTTPHooks           { return current.Load().http }

// Reset restores the no-op hooks.
func Reset() {
	r := defaults
	current.Store(&r)
}
