package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/pkg/circuitbreaker"
	"peerlink/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockPresencePublisher struct {
	mock.Mock
}

func (m *MockPresencePublisher) PublishUserJoined(ctx context.Context, username domain.Username) error {
	return m.Called(ctx, username).Error(0)
}

func (m *MockPresencePublisher) PublishUserLeft(ctx context.Context, username domain.Username) error {
	return m.Called(ctx, username).Error(0)
}

func testRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestPresencePublisher_RetriesTransientFailures(t *testing.T) {
	next := new(MockPresencePublisher)
	next.On("PublishUserJoined", mock.Anything, domain.Username("alice")).Return(errors.New("i/o timeout")).Once()
	next.On("PublishUserJoined", mock.Anything, domain.Username("alice")).Return(nil).Once()

	p := NewPresencePublisher(next, testRetry(), circuitbreaker.DefaultConfig(), zap.NewNop().Sugar())

	assert.NoError(t, p.PublishUserJoined(context.Background(), "alice"))
	next.AssertExpectations(t)
}

func TestPresencePublisher_OpenBreakerFailsFast(t *testing.T) {
	next := new(MockPresencePublisher)
	next.On("PublishUserLeft", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	cb := circuitbreaker.Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour}
	p := NewPresencePublisher(next, testRetry(), cb, zap.NewNop().Sugar())

	err := p.PublishUserLeft(context.Background(), "bob")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, circuitbreaker.StateOpen, p.State())
	next.AssertNumberOfCalls(t, "PublishUserLeft", 2)

	// Later events are rejected without touching the backend.
	err = p.PublishUserLeft(context.Background(), "carol")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	next.AssertNumberOfCalls(t, "PublishUserLeft", 2)
}
