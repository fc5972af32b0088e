package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"peerlink/internal/core/ports"
	apperrors "peerlink/pkg/errors"
	"peerlink/pkg/config"
	"peerlink/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var _ ports.WebSocketHandler = (*WebSocketServer)(nil)

type WebSocketServer struct {
	relay    *Relay
	upgrader websocket.Upgrader
	metrics  ports.RelayMetrics

	allowedOrigins []string

	pingInterval   time.Duration
	pongTimeout    time.Duration
	writeTimeout   time.Duration
	sendBuffer     int
	maxMessageSize int64

	messageRate    rate.Limit
	messageBurst   int
	maxConnections int

	clients  map[string]*client
	open     atomic.Int64
	draining atomic.Bool
	mu       sync.Mutex
	handlers sync.WaitGroup

	logger *zap.SugaredLogger
}

func NewWebSocketServer(relay *Relay, cfg *config.Config, metrics ports.RelayMetrics, log *zap.Logger) *WebSocketServer {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &WebSocketServer{
		relay:          relay,
		metrics:        metrics,
		allowedOrigins: cfg.Signal.AllowedOrigins,
		pingInterval:   cfg.Signal.PingInterval,
		pongTimeout:    cfg.Signal.PongTimeout,
		writeTimeout:   cfg.Signal.WriteTimeout,
		sendBuffer:     cfg.Signal.SendBuffer,
		maxMessageSize: cfg.Signal.MaxMessageSizeBytes,
		clients:        make(map[string]*client),
		logger:         log.Sugar(),
	}

	if cfg.RateLimiting.Enabled {
		s.messageRate = rate.Limit(cfg.RateLimiting.WebSocket.MessagesPerSecond)
		s.messageBurst = cfg.RateLimiting.WebSocket.Burst
		s.maxConnections = cfg.RateLimiting.WebSocket.MaxConcurrent
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
		Error:           s.upgradeError,
	}

	return s
}

// SetPingInterval sets ping interval for WebSocket connections
func (s *WebSocketServer) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

// SetPongTimeout sets pong timeout for WebSocket connections
func (s *WebSocketServer) SetPongTimeout(timeout time.Duration) {
	s.pongTimeout = timeout
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		writeAppError(w, apperrors.NewServiceUnavailableError("relay is shutting down"))
		return
	}

	if n := s.open.Add(1); s.maxConnections > 0 && n > int64(s.maxConnections) {
		s.open.Add(-1)
		s.logger.Warnw("rejecting connection: too many open connections", "limit", s.maxConnections)
		writeAppError(w, apperrors.NewServiceUnavailableError("too many connections").
			WithContext("limit", s.maxConnections))
		return
	}
	defer s.open.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Infow("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(uuid.NewString(), conn, s.sendBuffer)
	if !s.track(c) {
		c.shutdown(websocket.CloseGoingAway, "server shutting down")
		c.writePump(s.pingInterval, s.writeTimeout, func(error) {})
		return
	}
	defer s.untrack(c)

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	ctx := logger.WithConnID(context.Background(), c.id)
	log := s.logger.With("conn_id", c.id)
	log.Infow("client connected", "remote_addr", r.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(s.pingInterval, s.writeTimeout, func(err error) {
			log.Debugw("write failed", "error", err)
		})
	}()

	session := NewSession(c)
	s.readPump(ctx, c, session, log)

	c.shutdown(websocket.CloseNormalClosure, "")
	s.relay.Disconnect(ctx, session)
	<-writerDone

	name, loggedIn := session.Username()
	log.Infow("client disconnected", "username", name, "logged_in", loggedIn)
}

func (s *WebSocketServer) readPump(ctx context.Context, c *client, session *Session, log *zap.SugaredLogger) {
	if s.maxMessageSize > 0 {
		c.conn.SetReadLimit(s.maxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	var limiter *rate.Limiter
	if s.messageRate > 0 {
		limiter = rate.NewLimiter(s.messageRate, s.messageBurst)
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Infow("error reading message", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))

		if limiter != nil && !limiter.Allow() {
			s.metrics.MessageDropped(dropRateLimited)
			log.Debugw("dropped message", "error", "message rate limit exceeded")
			continue
		}

		if err := s.relay.HandleMessage(ctx, session, data); err != nil {
			log.Debugw("dropped message", "error", err)
		}
	}
}

// ConnectionCount returns the number of open sockets.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

// Draining reports whether Shutdown has been called.
func (s *WebSocketServer) Draining() bool {
	return s.draining.Load()
}

// Shutdown stops accepting sockets, closes every open one with a going-away
// frame and waits for their disconnect cleanup to finish.
func (s *WebSocketServer) Shutdown(ctx context.Context) error {
	s.draining.Store(true)

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.shutdown(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *WebSocketServer) track(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining.Load() {
		return false
	}
	s.clients[c.id] = c
	s.handlers.Add(1)
	return true
}

func (s *WebSocketServer) untrack(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	s.handlers.Done()
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range s.allowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	// An empty allow-list falls back to same-origin.
	if len(s.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	return false
}

func (s *WebSocketServer) upgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	var appErr *apperrors.AppError
	if status == http.StatusForbidden {
		appErr = apperrors.NewForbiddenError("origin not allowed").WithContext("origin", r.Header.Get("Origin"))
	} else {
		appErr = apperrors.NewInvalidInputError(reason.Error())
		appErr.HTTPStatus = status
	}
	writeAppError(w, appErr)
}

func writeAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(appErr.Response())
}
