package ports

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HTTPHandler interface {
	ListUsers(c *gin.Context)
	ICEServers(c *gin.Context)
	Health(c *gin.Context)
	Ready(c *gin.Context)
}

type WebSocketHandler interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	ConnectionCount() int
}
