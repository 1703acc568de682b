package ratelimit

import (
	"context"
	"strconv"
	"time"

	"licensecore/pkg/config"
	"licensecore/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit",
	fx.Provide(NewLimiter),
)

const (
	defaultRequests = 120
	defaultWindow   = time.Minute
)

// Limiter is a fixed-window counter backed by redis INCR. The first hit
// in a window sets the key's expiry to the window length.
type Limiter struct {
	rdb      *redis.Client
	requests int64
	window   time.Duration
}

type Params struct {
	fx.In

	Config *config.Config
	Redis  *redis.Client
}

func NewLimiter(p Params) *Limiter {
	requests := p.Config.RateLimit.Requests
	if requests <= 0 {
		requests = defaultRequests
	}
	window := p.Config.RateLimit.Window
	if window <= 0 {
		window = defaultWindow
	}

	return &Limiter{
		rdb:      p.Redis,
		requests: requests,
		window:   window,
	}
}

// Allow reports whether one more request from subject fits in the
// current window. Redis being down fails open; throttling is protection,
// not a correctness gate.
func (l *Limiter) Allow(ctx context.Context, scope, subject string) bool {
	bucket := strconv.FormatInt(time.Now().Unix()/int64(l.window.Seconds()), 10)
	key := rediskey.BuildRateLimitKey(scope, subject, bucket)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		zap.L().Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
		return true
	}

	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			zap.L().Warn("rate limiter expire failed", zap.String("key", key), zap.Error(err))
		}
	}

	return count <= l.requests
}
