package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/response"
	"github.com/charlesng35/adpulse/pkg/validator"
)

// maxBodyBytes bounds JSON request bodies; none of the API's payloads come close.
const maxBodyBytes = 1 << 20

var errBodyTooLarge = appErrors.New("PAYLOAD_TOO_LARGE", "request body is too large", http.StatusRequestEntityTooLarge)

// bindAndValidate decodes the JSON body into dest and applies its validate tags.
// On failure it writes the error response and returns false; rule failures are
// listed per field under error.details.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	if err := c.ShouldBindJSON(dest); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.Error(c, errBodyTooLarge)
		case errors.Is(err, io.EOF):
			response.Error(c, appErrors.NewBadRequest("request body is required"))
		default:
			response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		}
		return false
	}

	if err := validator.Struct(dest); err != nil {
		var failures validator.FieldErrors
		if errors.As(err, &failures) {
			response.Error(c, appErrors.NewBadRequest(failures.Error()).WithDetails(failures))
		} else {
			response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		}
		return false
	}
	return true
}

// queryInt reads a positive integer query parameter, falling back when it is absent or malformed.
func queryInt(c *gin.Context, key string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
