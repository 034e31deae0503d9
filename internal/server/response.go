package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cruxline/crux-engine/internal/apperr"
)

// Response is the unified JSON envelope for all HTTP endpoints.
type Response struct {
	Code    int    `json:"code"` // 0 on success, HTTP status on error
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Respond writes a success envelope.
func Respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Fail maps a taxonomy error onto an HTTP status and writes the error
// envelope. Unknown errors become 500 without leaking internals.
func Fail(c *gin.Context, err error) {
	status := httpStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, Response{Code: status, Message: msg})
}

func httpStatus(err error) int {
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case apperr.IsAuthorization(err):
		return http.StatusForbidden
	case apperr.IsNotFound(err):
		return http.StatusNotFound
	case apperr.IsConflict(err):
		return http.StatusConflict
	case apperr.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
