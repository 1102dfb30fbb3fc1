package rest

import (
	"fmt"
	"net/http"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends a structured error response
func JSONError(c *gin.Context, status int, err error, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"error":   err.Error(),
	})
}

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	JSONError(c, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err), "invalid request payload")
	log.Warn(handlerName+": binding error", "err", err)
}

// MapErrorToHTTP maps engine errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, errors.AuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, errors.OrderNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, errors.UserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, errors.InvalidListing):
		return http.StatusBadRequest, "invalid listing"
	case errors.Is(err, errors.InvalidAmount):
		return http.StatusBadRequest, "amount must be in whole cents"
	case errors.Is(err, errors.InvalidTransition):
		return http.StatusBadRequest, "invalid status transition"
	case errors.Is(err, errors.NotAvailable):
		return http.StatusConflict, "auction is not available for this operation"
	case errors.Is(err, errors.RetryExhausted), errors.Is(err, errors.LockTimeout):
		// Checked before Conflict: exhausted retries wrap the last conflict.
		return http.StatusServiceUnavailable, "auction is busy, try again"
	case errors.Is(err, errors.Conflict):
		return http.StatusConflict, "concurrent modification"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondError writes err with its mapped status. Server side failures are
// logged as errors, everything else at debug.
func respondError(c *gin.Context, handlerName string, err error, kv ...any) {
	status, message := MapErrorToHTTP(err)
	JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
	if status >= http.StatusInternalServerError {
		log.Error(handlerName+": "+message, append(kv, "err", err)...)
		return
	}
	log.Debug(handlerName+": "+message, append(kv, "err", err)...)
}
