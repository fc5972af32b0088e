package reliability

import (
	"context"
	"errors"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
	"peerlink/pkg/circuitbreaker"
	"peerlink/pkg/retry"

	"go.uber.org/zap"
)

var _ ports.PresencePublisher = (*PresencePublisher)(nil)

// PresencePublisher wraps a PresencePublisher with retries and a circuit breaker.
type PresencePublisher struct {
	next    ports.PresencePublisher
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

func NewPresencePublisher(
	next ports.PresencePublisher,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *PresencePublisher {
	p := &PresencePublisher{
		next:    next,
		retry:   retryConfig,
		breaker: circuitbreaker.New(cbConfig),
		logger:  logger,
	}

	// An open breaker is never retried.
	userRetryable := retryConfig.Retryable
	p.retry.Retryable = func(err error) bool {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return false
		}
		return userRetryable == nil || userRetryable(err)
	}

	p.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("presence publisher circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return p
}

func (p *PresencePublisher) PublishUserJoined(ctx context.Context, username domain.Username) error {
	return p.do(ctx, func(ctx context.Context) error {
		return p.next.PublishUserJoined(ctx, username)
	})
}

func (p *PresencePublisher) PublishUserLeft(ctx context.Context, username domain.Username) error {
	return p.do(ctx, func(ctx context.Context) error {
		return p.next.PublishUserLeft(ctx, username)
	})
}

// State exposes the breaker state for health reporting.
func (p *PresencePublisher) State() circuitbreaker.State {
	return p.breaker.State()
}

func (p *PresencePublisher) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.retry, func(ctx context.Context) error {
		return p.breaker.Execute(func() error {
			return fn(ctx)
		})
	})
}
