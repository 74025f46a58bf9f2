// Package respond translates service errors into the JSON error responses
// shared by every handler package.
package respond

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/platformhub/platformhub/internal/services"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrInvalidArgument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error writes {"error": msg} for err and aborts the chain. Unclassified
// errors are logged and reported as a generic 500.
func Error(c *gin.Context, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		_ = c.Error(err)
	}
	Abort(c, status, services.PublicMessage(err))
}

// Abort writes {"error": msg} with status and aborts the chain.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// InvalidBody reports a request body that could not be decoded.
func InvalidBody(c *gin.Context, err error) {
	Abort(c, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
}

// ID parses the int64 path parameter name, writing a 422 when it is not
// an integer.
func ID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		Abort(c, http.StatusUnprocessableEntity, name+" must be an integer")
		return 0, false
	}
	return id, true
}
