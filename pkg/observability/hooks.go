// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about lottery runs, cache operations, and HTTP handling.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetLotteryHooks(&myLotteryHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Lottery().OnRunStart(ctx, kind, participants)
//	// ... place participants ...
//	observability.Lottery().OnRunComplete(ctx, kind, runID, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Lottery Hooks
// =============================================================================

// LotteryHooks receives events from lottery runs.
type LotteryHooks interface {
	// Run lifecycle
	OnRunStart(ctx context.Context, kind string, participants int)
	OnRunComplete(ctx context.Context, kind, runID string, duration time.Duration, err error)

	// Placement events
	OnPlaced(ctx context.Context, kind string, participantID, tripID int64, choice int)
	OnWaitlisted(ctx context.Context, kind string, participantID, tripID int64)
	OnBumped(ctx context.Context, kind string, participantID, tripID int64)

	// OnDeadlock records a participant whose separation requests form
	// unresolvable cycles.
	OnDeadlock(ctx context.Context, participantID int64, cycles int)
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

// HTTPHooks receives events from HTTP request handling.
type HTTPHooks interface {
	// OnRequest records an incoming HTTP request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records a completed HTTP response.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopLotteryHooks is a no-op implementation of LotteryHooks.
type NoopLotteryHooks struct{}

func (NoopLotteryHooks) OnRunStart(context.Context, string, int)                             {}
func (NoopLotteryHooks) OnRunComplete(context.Context, string, string, time.Duration, error) {}
func (NoopLotteryHooks) OnPlaced(context.Context, string, int64, int64, int)                 {}
func (NoopLotteryHooks) OnWaitlisted(context.Context, string, int64, int64)                  {}
func (NoopLotteryHooks) OnBumped(context.Context, string, int64, int64)                      {}
func (NoopLotteryHooks) OnDeadlock(context.Context, int64, int)                              {}

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
// Global Hook Registry
// =============================================================================

var (
	lotteryHooks LotteryHooks = NoopLotteryHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetLotteryHooks registers custom lottery hooks.
// This should be called once at application startup before any lottery runs.
func SetLotteryHooks(h LotteryHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		lotteryHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before serving requests.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Lottery returns the registered lottery hooks.
func Lottery() LotteryHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return lotteryHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	lotteryHooks = NoopLotteryHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
