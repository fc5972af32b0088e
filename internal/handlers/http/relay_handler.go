package http

import (
	"net/http"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
	"peerlink/internal/infrastructure/monitoring"
	"peerlink/pkg/config"
	"peerlink/pkg/errors"

	webrtc "github.com/pion/webrtc/v3"

	"github.com/gin-gonic/gin"
)

var _ ports.HTTPHandler = (*RelayHandler)(nil)

// UserDirectory is the read side of the relay used by the HTTP API.
type UserDirectory interface {
	Usernames() []domain.Username
}

type RelayHandler struct {
	users      UserDirectory
	sockets    ports.WebSocketHandler
	health     *monitoring.HealthChecker
	iceServers []webrtc.ICEServer
	started    time.Time
}

func NewRelayHandler(
	users UserDirectory,
	sockets ports.WebSocketHandler,
	health *monitoring.HealthChecker,
	cfg *config.Config,
) *RelayHandler {
	return &RelayHandler{
		users:      users,
		sockets:    sockets,
		health:     health,
		iceServers: ICEServersFromConfig(cfg),
		started:    time.Now(),
	}
}

func (h *RelayHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)

	api := router.Group("/api/v1")
	{
		api.GET("/users", h.ListUsers)
		api.GET("/ice-servers", h.ICEServers)
	}
}

func (h *RelayHandler) ListUsers(c *gin.Context) {
	users := h.users.Usernames()

	c.JSON(http.StatusOK, gin.H{
		"users": domain.UsernameStrings(users),
		"count": len(users),
	})
}

func (h *RelayHandler) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"iceServers": h.iceServers,
	})
}

func (h *RelayHandler) Health(c *gin.Context) {
	status := h.health.LastStatus()

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"checks":      status.Checks,
		"uptime":      time.Since(h.started).Round(time.Second).String(),
		"connections": h.sockets.ConnectionCount(),
		"users":       len(h.users.Usernames()),
		"timestamp":   status.Timestamp,
	})
}

func (h *RelayHandler) Ready(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())
	if status.Status != monitoring.StatusHealthy {
		_ = c.Error(errors.NewServiceUnavailableError("not ready").
			WithContext("checks", status.Checks))
		return
	}

	c.JSON(http.StatusOK, status)
}

// ICEServersFromConfig converts the configured STUN/TURN servers into the
// shape browsers expect in RTCConfiguration.iceServers.
func ICEServersFromConfig(cfg *config.Config) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		server := webrtc.ICEServer{
			URLs:     append([]string(nil), s.URLs...),
			Username: s.Username,
		}
		if s.Credential != "" {
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, server)
	}
	return servers
}
