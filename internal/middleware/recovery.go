package middleware

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/logger"
	"github.com/charlesng35/adpulse/pkg/response"
)

// Recovery turns a handler panic into a generic 500 so internals never reach the client.
// http.ErrAbortHandler is re-raised for net/http, and a client that hung up gets no body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log := logger.WithModule("http").With(
				zap.String("request_id", c.GetString(CtxRequestIDKey)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
			)
			if err, ok := rec.(error); ok && clientGone(err) {
				log.Warn("client disconnected mid-response", zap.Error(err))
				c.Abort()
				return
			}

			log.Error("panic recovered", zap.String("panic", fmt.Sprint(rec)), zap.Stack("stack"))
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}

func clientGone(err error) bool {
	return stderrors.Is(err, syscall.EPIPE) || stderrors.Is(err, syscall.ECONNRESET)
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.New(errors.ErrNotFound.Code,
		fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path), http.StatusNotFound))
}
