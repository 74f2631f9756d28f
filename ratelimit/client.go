package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanchitsharma77/airweave-sub002/common"
)

// Plan identifies a billing plan for client rate limiting purposes.
type Plan string

const (
	PlanDeveloper  Plan = "developer"
	PlanPro        Plan = "pro"
	PlanTeam       Plan = "team"
	PlanEnterprise Plan = "enterprise"
)

// planLimits maps billing plans to requests per second. Enterprise is
// unlimited and never touches Redis.
var planLimits = map[Plan]int{
	PlanDeveloper: 10,
	PlanPro:       25,
	PlanTeam:      50,
}

// clientWindow is the client gate's window size.
const clientWindow = time.Second

// ClientLimiter gates inbound client calls per organization. On Redis
// outages the limiter fails open: an unavailable limiter must never take the
// API down with it.
type ClientLimiter struct {
	window *SlidingWindow
	logger *common.ContextLogger
}

// NewClientLimiter creates a client limiter on the given Redis client.
func NewClientLimiter(client redis.UniversalClient, logger *common.ContextLogger) *ClientLimiter {
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]interface{}{"component": "client_limiter"})
	}
	return &ClientLimiter{window: NewSlidingWindow(client), logger: logger}
}

// ClientKey returns the Redis key for an organization's client window.
func ClientKey(organizationID string) string {
	return fmt.Sprintf("rate_limit:org:%s", organizationID)
}

// Check admits or rejects one client call for the organization. A rejection
// is returned as *common.RateLimitError carrying retry-after, limit, and
// remaining allowance.
func (l *ClientLimiter) Check(ctx context.Context, organizationID string, plan Plan) error {
	limit, limited := planLimits[plan]
	if !limited {
		return nil
	}

	result, err := l.window.Allow(ctx, ClientKey(organizationID), limit, clientWindow)
	if err != nil {
		// Fail open: log and allow.
		l.logger.WithField("organization_id", organizationID).WithError(err).
			Warn("client rate limiter unavailable, allowing request")
		return nil
	}
	if !result.Allowed {
		return &common.RateLimitError{
			RetryAfter: result.RetryAfter,
			Limit:      result.Limit,
			Remaining:  result.Remaining,
		}
	}
	return nil
}
