package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
	"peerlink/pkg/logger"
	"peerlink/pkg/tracing"

	"go.uber.org/zap"
)

const defaultPresenceTimeout = 3 * time.Second

// Drop reasons reported to metrics.
const (
	dropMalformed      = "malformed"
	dropUnknownType    = "unknown_type"
	dropTargetNotFound = "target_not_found"
	dropSendFailed     = "send_failed"
	dropRateLimited    = "rate_limited"
	dropPanic          = "panic"
)

// Session is the per-connection handler state. It is owned by the
// connection's reader goroutine and is not safe for concurrent use.
type Session struct {
	conn     ports.Connection
	username domain.Username
	loggedIn bool
}

func NewSession(conn ports.Connection) *Session {
	return &Session{conn: conn}
}

// Username returns the name this connection last logged in with.
func (s *Session) Username() (domain.Username, bool) {
	return s.username, s.loggedIn
}

func (s *Session) ConnID() string {
	return s.conn.ID()
}

// Relay owns the registry and implements login, routing, disconnect cleanup
// and presence broadcasts. One Relay is shared by all connection handlers.
type Relay struct {
	registry ports.UserRegistry
	presence ports.PresencePublisher
	metrics  ports.RelayMetrics
	log      *logger.ContextLogger

	presenceTimeout time.Duration
	pending         sync.WaitGroup
}

type RelayOption func(*Relay)

func WithPresencePublisher(p ports.PresencePublisher) RelayOption {
	return func(r *Relay) {
		r.presence = p
	}
}

func WithMetrics(m ports.RelayMetrics) RelayOption {
	return func(r *Relay) {
		if m != nil {
			r.metrics = m
		}
	}
}

func WithLogger(l *zap.Logger) RelayOption {
	return func(r *Relay) {
		r.log = logger.NewContextLogger(l)
	}
}

func NewRelay(registry ports.UserRegistry, opts ...RelayOption) *Relay {
	r := &Relay{
		registry:        registry,
		metrics:         noopMetrics{},
		log:             logger.NewContextLogger(zap.NewNop()),
		presenceTimeout: defaultPresenceTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleMessage decodes one inbound frame and dispatches it. A non-nil error
// means the frame was dropped; the connection stays usable either way.
func (r *Relay) HandleMessage(ctx context.Context, s *Session, data []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.MessageDropped(dropPanic)
			r.log.Sugar(ctx).Errorw("recovered from panic while handling message", "panic", rec)
			err = fmt.Errorf("panic while handling message: %v", rec)
		}
	}()

	env, err := DecodeEnvelope(data)
	if err != nil {
		r.metrics.MessageReceived("")
		r.metrics.MessageDropped(dropMalformed)
		return err
	}
	r.metrics.MessageReceived(env.Type)

	ctx, span := tracing.TraceWebSocketMessage(ctx, string(env.Type), s.ConnID())
	defer span.End()

	switch {
	case env.Type == domain.MessageLogin:
		var name domain.Username
		name, err = env.Username()
		if err == nil {
			r.Login(ctx, s, name)
		} else {
			r.metrics.MessageDropped(dropMalformed)
		}
	case env.Type.IsRouted():
		err = r.Forward(ctx, s, env)
	default:
		r.metrics.MessageDropped(dropUnknownType)
		err = fmt.Errorf("%w: %q", domain.ErrUnknownType, env.Type)
	}

	outcome := "handled"
	if err != nil {
		outcome = "dropped"
		tracing.RecordError(ctx, err)
	}
	tracing.AddSpanAttributes(ctx, tracing.OutcomeKey.String(outcome))
	return err
}

// Login binds the session to name, displacing any other holder without
// notice, and broadcasts the new user list.
func (r *Relay) Login(ctx context.Context, s *Session, name domain.Username) {
	s.username = name
	s.loggedIn = true

	released, renamed := r.registry.Bind(name, s.conn, r.broadcastLocked)

	tracing.AddSpanAttributes(ctx, tracing.UsernameKey.String(string(name)))
	r.log.Sugar(ctx).Infow("user logged in", "username", name, "released", released, "renamed", renamed)

	if renamed {
		r.publish(released, false)
	}
	r.publish(name, true)
}

// Forward delivers a routed message to its target with "from" attached.
// Unknown targets and failed sends are reported as errors and otherwise ignored.
func (r *Relay) Forward(ctx context.Context, s *Session, env *Envelope) error {
	target, err := env.Target()
	if err != nil {
		if errors.Is(err, domain.ErrTargetNotFound) {
			r.metrics.MessageDropped(dropTargetNotFound)
		} else {
			r.metrics.MessageDropped(dropMalformed)
		}
		return err
	}
	tracing.AddSpanAttributes(ctx, tracing.TargetKey.String(string(target)))

	conn, ok := r.registry.Lookup(target)
	if !ok {
		r.metrics.MessageDropped(dropTargetNotFound)
		return fmt.Errorf("%w: %q", domain.ErrTargetNotFound, target)
	}

	var from *domain.Username
	if name, loggedIn := s.Username(); loggedIn {
		from = &name
	}

	payload, err := env.WithFrom(from)
	if err != nil {
		r.metrics.MessageDropped(dropMalformed)
		return fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}

	if err := conn.Send(payload); err != nil {
		r.metrics.MessageDropped(dropSendFailed)
		return fmt.Errorf("forward %s to %q: %w", env.Type, target, err)
	}

	r.metrics.MessageForwarded(env.Type)
	r.log.Sugar(ctx).Debugw("forwarded message", "type", env.Type, "target", target, "bytes", len(payload))
	return nil
}

// Disconnect runs cleanup for a closed connection. The registry entry is
// removed only if this connection still owns it. Reports whether anything
// was removed.
func (r *Relay) Disconnect(ctx context.Context, s *Session) bool {
	if !s.loggedIn {
		return false
	}

	name, removed := r.registry.Unbind(s.conn, r.broadcastLocked)
	if !removed {
		r.log.Sugar(ctx).Debugw("displaced connection closed", "username", s.username)
		return false
	}

	r.log.Sugar(ctx).Infow("user logged out", "username", name)
	r.publish(name, false)
	return true
}

// BroadcastUserList sends the current user list to every registered connection.
func (r *Relay) BroadcastUserList() {
	r.registry.View(r.broadcastLocked)
}

// Usernames returns the names a broadcast would carry right now.
func (r *Relay) Usernames() []domain.Username {
	return r.registry.Usernames()
}

// Close waits for in-flight presence events.
func (r *Relay) Close() {
	r.pending.Wait()
}

// broadcastLocked runs under the registry lock; sends only enqueue, so one
// slow recipient cannot hold up the others.
func (r *Relay) broadcastLocked(users []domain.Username, conns []ports.Connection) {
	r.metrics.UsersRegistered(len(users))

	payload, err := EncodeUserList(users)
	if err != nil {
		r.log.Sugar(context.Background()).Errorw("failed to encode user list", "error", err)
		return
	}

	failed := 0
	for i, conn := range conns {
		if err := conn.Send(payload); err != nil {
			failed++
			r.log.Sugar(context.Background()).Debugw("user list not delivered",
				"username", users[i],
				"conn_id", conn.ID(),
				"error", err,
			)
		}
	}
	r.metrics.BroadcastSent(len(conns), failed)
}

func (r *Relay) publish(name domain.Username, joined bool) {
	if r.presence == nil {
		return
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.presenceTimeout)
		defer cancel()

		var err error
		if joined {
			err = r.presence.PublishUserJoined(ctx, name)
		} else {
			err = r.presence.PublishUserLeft(ctx, name)
		}
		if err != nil {
			r.log.Sugar(ctx).Warnw("failed to publish presence event", "username", name, "joined", joined, "error", err)
		}
	}()
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()                   {}
func (noopMetrics) ConnectionClosed()                   {}
func (noopMetrics) UsersRegistered(int)                 {}
func (noopMetrics) MessageReceived(domain.MessageType)  {}
func (noopMetrics) MessageForwarded(domain.MessageType) {}
func (noopMetrics) MessageDropped(string)               {}
func (noopMetrics) BroadcastSent(int, int)              {}
