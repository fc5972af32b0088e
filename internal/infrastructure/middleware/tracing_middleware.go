package middleware

import (
	"net/http"

	"peerlink/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware opens a server span per request. Upgrade requests get a
// span that covers only the handshake; frames are traced by the relay.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "static"
		}

		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, route)
		span.SetAttributes(
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("http.client_ip", c.ClientIP()),
			attribute.String("http.request_id", c.Writer.Header().Get(RequestIDHeader)),
		)

		if websocket.IsWebSocketUpgrade(c.Request) {
			span.SetAttributes(attribute.Bool("websocket.upgrade", true))
			span.End()
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int("http.response_size", c.Writer.Size()),
		)
		// 4xx is the client's fault and leaves the span status unset.
		switch {
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, c.Errors.String())
		case status < http.StatusBadRequest:
			span.SetStatus(codes.Ok, "")
		}
	}
}
