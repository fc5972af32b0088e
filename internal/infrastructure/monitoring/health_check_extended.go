package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddDrainCheck fails once draining reports true, so load balancers stop
// routing new sockets to a relay that is shutting down.
func (h *HealthChecker) AddDrainCheck(draining func() bool, interval time.Duration) {
	h.AddCheck("accepting_connections", func(ctx context.Context) (bool, error) {
		if draining() {
			return false, errors.New("relay is shutting down")
		}
		return true, nil
	}, interval, time.Second)
}
