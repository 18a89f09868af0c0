package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// incrWindow bumps the fixed-window counter and sets the window expiry only on
// the first hit. Done in one script so racing callers cannot re-arm the expiry
// and extend the window indefinitely.
var incrWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// FixedWindow counts requests per client in discrete windows keyed
// rate_limit:{clientID}. On any Redis error it fails open: an infrastructure
// outage must not become a user-facing outage.
type FixedWindow struct {
	client *redis.Client
	logger *zap.Logger
}

func NewFixedWindow(client *redis.Client, logger *zap.Logger) *FixedWindow {
	return &FixedWindow{
		client: client,
		logger: logger,
	}
}

func (l *FixedWindow) Allow(ctx context.Context, clientID string, limit int, window time.Duration) bool {
	key := "rate_limit:" + clientID
	seconds := int(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	count, err := incrWindow.Run(ctx, l.client, []string{key}, seconds).Int64()
	if err != nil {
		l.logger.Warn("rate limiter unavailable, failing open",
			zap.String("client_id", clientID),
			zap.Error(err),
		)
		return true
	}
	return count <= int64(limit)
}
