package security

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/valyala/fasthttp"
)

// RateLimitConfig configures rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per client
	RequestsPerMinute int

	// RequestsPerSecond is an alternative to RequestsPerMinute
	RequestsPerSecond int

	// Burst is the bucket size (default: one minute's worth of requests)
	Burst int

	// KeyFunc extracts a key from the request to identify the client
	// Default: uses IP address
	KeyFunc func(ctx *web.FastRequestContext) string

	// SkipPaths are path prefixes that are never limited
	SkipPaths []string

	// OnLimitReached is called when rate limit is exceeded
	// If nil, returns 429 Too Many Requests
	OnLimitReached func(ctx *web.FastRequestContext) error

	// now replaces time.Now in tests
	now func() time.Time
}

// DefaultRateLimitConfig returns a default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 100,
		KeyFunc: func(ctx *web.FastRequestContext) string {
			return ctx.RequestCtx.RemoteIP().String()
		},
	}
}

// idleBucketTTL is how long an untouched bucket is kept
const idleBucketTTL = 10 * time.Minute

// rateLimiter is a token bucket per key. Idle buckets are swept inline.
type rateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	rate      float64 // tokens per second
	burst     float64
	lastSweep time.Time
}

type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

func newRateLimiter(perMinute, burst int, now time.Time) *rateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = perMinute
	}
	return &rateLimiter{
		buckets:   make(map[string]*tokenBucket),
		rate:      float64(perMinute) / 60,
		burst:     float64(burst),
		lastSweep: now,
	}
}

// allow takes a token for key. When none is left it returns the wait until the next one.
func (rl *rateLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > idleBucketTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) > idleBucketTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: rl.burst, lastSeen: now}
		rl.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastSeen).Seconds(); elapsed > 0 {
		b.tokens = math.Min(rl.burst, b.tokens+elapsed*rl.rate)
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / rl.rate * float64(time.Second))
	return false, wait
}

// RateLimit middleware enforces a token bucket per client key
func RateLimit(config RateLimitConfig) web.FastMiddleware {
	requestsPerMinute := config.RequestsPerMinute
	if requestsPerMinute == 0 && config.RequestsPerSecond > 0 {
		requestsPerMinute = config.RequestsPerSecond * 60
	}
	if requestsPerMinute == 0 {
		requestsPerMinute = 100
	}

	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(ctx *web.FastRequestContext) string {
			return ctx.RequestCtx.RemoteIP().String()
		}
	}
	now := config.now
	if now == nil {
		now = time.Now
	}

	limiter := newRateLimiter(requestsPerMinute, config.Burst, now())

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			path := string(ctx.Path())
			for _, p := range config.SkipPaths {
				if strings.HasPrefix(path, p) {
					return next(ctx)
				}
			}

			ok, wait := limiter.allow(keyFunc(ctx), now())
			if ok {
				return next(ctx)
			}

			if config.OnLimitReached != nil {
				return config.OnLimitReached(ctx)
			}
			seconds := int(math.Ceil(wait.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			ctx.RequestCtx.Response.Header.Set("Retry-After", strconv.Itoa(seconds))
			return ctx.WriteError(web.NewHTTPError(fasthttp.StatusTooManyRequests, web.CodeRateLimitExceeded,
				"Request was throttled. Expected available in "+strconv.Itoa(seconds)+" seconds."))
		}
	}
}
