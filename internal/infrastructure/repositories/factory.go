package repositories

import (
	"context"

	"peerlink/internal/core/ports"
	"peerlink/internal/infrastructure/distributed"
	"peerlink/internal/infrastructure/reliability"
	"peerlink/internal/infrastructure/repositories/memory"
	redisrepo "peerlink/internal/infrastructure/repositories/redis"
	"peerlink/pkg/circuitbreaker"
	"peerlink/pkg/config"
	"peerlink/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory wires the registry and, when Redis is configured and
// reachable, the presence event mirror.
type RepositoryFactory struct {
	redisClient *redis.Client
	channel     string
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		channel: cfg.Redis.Channel,
		logger:  logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, presence events disabled",
				"error", err,
			)
		} else {
			factory.redisClient = client
			logger.Infow("mirroring presence events to Redis", "channel", cfg.Redis.Channel)
		}
	}

	return factory, nil
}

// CreateUserRegistry creates the username registry. The registry always
// lives in process memory: it holds live socket handles.
func (f *RepositoryFactory) CreateUserRegistry() ports.UserRegistry {
	return memory.NewMemoryUserRegistry()
}

// CreatePresencePublisher returns nil when Redis is not in use.
func (f *RepositoryFactory) CreatePresencePublisher(instanceID string) ports.PresencePublisher {
	if f.redisClient == nil {
		return nil
	}
	bus := distributed.NewEventBus(f.redisClient, instanceID, f.channel, f.logger)
	return reliability.NewPresencePublisher(bus, retry.DefaultConfig(), circuitbreaker.DefaultConfig(), f.logger)
}

// RedisClient returns the connected client or nil.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient == nil {
		return nil
	}
	err := redisrepo.CloseRedisClient(f.redisClient)
	f.redisClient = nil
	return err
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
