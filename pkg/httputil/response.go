package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/phms-engine/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response with the status mapped from the
// error's code. Unknown errors are reported as internal.
func RespondWithError(c *gin.Context, err error) {
	statusCode := StatusFor(err)
	message := "Internal server error"
	if appErr := asAppError(err); appErr != nil && statusCode != http.StatusInternalServerError {
		message = appErr.Message
	}
	if statusCode == http.StatusInternalServerError {
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(statusCode, Response{
		Success: false,
		Error: &Error{
			Code:    statusCode,
			Message: message,
		},
	})
}

// RespondWithMessage sends an error response for failures detected in the
// handler itself, such as binding errors.
func RespondWithMessage(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, Response{
		Success: false,
		Error: &Error{
			Code:    statusCode,
			Message: message,
		},
	})
}

func StatusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrNotFound, errors.ErrEntityVanished:
		return http.StatusNotFound
	case errors.ErrBadRequest, errors.ErrMalformedInput:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrForbidden, errors.ErrPermissionDenied:
		return http.StatusForbidden
	case errors.ErrTransientFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func asAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
