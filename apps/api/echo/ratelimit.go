package echoapi

import (
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"github.com/labstack/echo/v4"
)

// maxTrackedClients bounds the number of buckets kept in memory.
const maxTrackedClients = 10000

// rateLimiter hands out one token bucket per client IP.
type rateLimiter struct {
	mu         sync.Mutex
	interval   time.Duration
	capacity   int64
	maxClients int
	buckets    map[string]*ratelimit.Bucket
}

// newRateLimiter allows perMinute requests per client, in bursts of up to perMinute. perMinute <= 0 disables it.
func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{maxClients: maxTrackedClients, buckets: make(map[string]*ratelimit.Bucket)}
	if perMinute > 0 {
		rl.interval = time.Minute / time.Duration(perMinute)
		rl.capacity = int64(perMinute)
	}
	return rl
}

// bucket returns the client's bucket, or nil when every tracked bucket is in use and none can be evicted.
func (rl *rateLimiter) bucket(client string) *ratelimit.Bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.buckets[client]; ok {
		return b
	}
	if len(rl.buckets) >= rl.maxClients {
		rl.evictIdle()
		if len(rl.buckets) >= rl.maxClients {
			return nil
		}
	}
	b := ratelimit.NewBucket(rl.interval, rl.capacity)
	rl.buckets[client] = b
	return b
}

// evictIdle drops the buckets that refilled completely.
func (rl *rateLimiter) evictIdle() {
	for client, b := range rl.buckets {
		if b.Available() >= rl.capacity {
			delete(rl.buckets, client)
		}
	}
}

// Allow takes a token from the client's bucket, reporting false when it is empty.
func (rl *rateLimiter) Allow(client string) bool {
	if rl.capacity == 0 {
		return true
	}
	b := rl.bucket(client)
	return b != nil && b.TakeAvailable(1) == 1
}

func (rl *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !rl.Allow(ctx.RealIP()) {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// newIPExtractor reads the client IP from the connection, or from X-Forwarded-For when the API runs behind
// a proxy. Only loopback, link-local and private proxies are trusted in the header.
func newIPExtractor(behindProxy bool) echo.IPExtractor {
	if behindProxy {
		return echo.ExtractIPFromXFFHeader()
	}
	return echo.ExtractIPDirect()
}
