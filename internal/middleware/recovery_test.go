package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/adpulse/pkg/logger"
	"github.com/charlesng35/adpulse/pkg/response"
)

func recoveryRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.DebugLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })

	r := gin.New()
	r.Use(RequestMeta(), Recovery())
	return r, recorded
}

func TestRecoveryHidesPanicDetails(t *testing.T) {
	r, recorded := recoveryRouter(t)
	r.GET("/invites/:token", func(c *gin.Context) { panic("lookup failed for " + c.Param("token")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invites/secret-token", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "INTERNAL_SERVER_ERROR", payload.Error.Code)
	require.NotContains(t, w.Body.String(), "secret-token")

	logged := recorded.FilterMessage("panic recovered").All()
	require.Len(t, logged, 1)
	require.Equal(t, w.Header().Get(HeaderRequestID), logged[0].ContextMap()["request_id"])
}

func TestRecoveryToleratesDisconnectedClient(t *testing.T) {
	r, recorded := recoveryRouter(t)
	r.GET("/export", func(c *gin.Context) {
		panic(fmt.Errorf("write response: %w", syscall.EPIPE))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/export", nil))
	require.Empty(t, recorded.FilterMessage("panic recovered").All())
	require.Len(t, recorded.FilterMessage("client disconnected mid-response").All(), 1)
}

func TestRecoveryRepanicsAbortHandler(t *testing.T) {
	r, _ := recoveryRouter(t)
	r.GET("/abort", func(c *gin.Context) { panic(http.ErrAbortHandler) })

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
}

func TestNotFoundHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.NoRoute(NotFoundHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/missing", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Equal(t, "NOT_FOUND", payload.Error.Code)
	require.Equal(t, "no route for DELETE /missing", payload.Error.Message)
}
