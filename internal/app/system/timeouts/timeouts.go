// Package timeouts holds the per-class deadlines handlers put on backend calls.
//
// Classes:
//   - Ping: health checks
//   - Short: single document reads, sign-in checks, detection server polls
//   - Medium: list queries and profile writes
//   - Long: account creation and deletion, which touch auth and documents
//   - Stream: upper bound on a proxied video stream or SSE connection
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 20 * time.Second
	DefaultStream = 2 * time.Hour
)

var (
	mu     sync.RWMutex
	values = Config{
		Ping:   DefaultPing,
		Short:  DefaultShort,
		Medium: DefaultMedium,
		Long:   DefaultLong,
		Stream: DefaultStream,
	}
)

// Config is one value per class. Zero fields are ignored by Configure.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Stream time.Duration
}

func Ping() time.Duration   { return get(func(c Config) time.Duration { return c.Ping }) }
func Short() time.Duration  { return get(func(c Config) time.Duration { return c.Short }) }
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }
func Long() time.Duration   { return get(func(c Config) time.Duration { return c.Long }) }
func Stream() time.Duration { return get(func(c Config) time.Duration { return c.Stream }) }

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(values)
}

// Configure overrides the non-zero classes in cfg. Call it once during startup.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&values.Ping, cfg.Ping)
	set(&values.Short, cfg.Short)
	set(&values.Medium, cfg.Medium)
	set(&values.Long, cfg.Long)
	set(&values.Stream, cfg.Stream)
}

// Reset restores the defaults. Tests use it after Configure.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	values = Config{
		Ping:   DefaultPing,
		Short:  DefaultShort,
		Medium: DefaultMedium,
		Long:   DefaultLong,
		Stream: DefaultStream,
	}
}

// Current returns the active configuration, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return values
}

// WithTimeout is context.WithTimeout whose cancel func logs when the
// deadline was the reason the operation ended.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "create user entry")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
