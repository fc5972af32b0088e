package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"peerlink/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware renders the last error attached with c.Error.
// Handlers that already wrote a response are left alone.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr := errors.GetAppError(err)
		if appErr == nil {
			appErr = errors.WrapError(err, errors.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
		}

		log := logger.With(
			"request_id", c.Writer.Header().Get(RequestIDHeader),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		if appErr.HTTPStatus >= http.StatusInternalServerError && appErr.Cause != nil {
			log.Errorw("unhandled error", "error", appErr.Cause)
		} else {
			log.Warnw("application error",
				"code", appErr.Code,
				"message", appErr.Message,
				"status", appErr.HTTPStatus,
				"context", appErr.Context,
			)
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.HTTPStatus, appErr.Response())
	}
}

// RecoveryMiddleware turns a handler panic into a 500 with the same body
// shape as any other error.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			logger.Errorw("panic recovered",
				"error", fmt.Sprint(rec),
				"request_id", c.Writer.Header().Get(RequestIDHeader),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"stack", string(debug.Stack()),
			)
			abortWithAppError(c, errors.NewInternalError("internal server error"))
		}()

		c.Next()
	}
}
