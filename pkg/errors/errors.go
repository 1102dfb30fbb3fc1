package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    int    // HTTP status code or custom error code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

const (
	ErrInvalidToken       = 1001
	ErrAuctionNotFound    = 1002
	ErrBidTooLow          = 1003
	ErrAuctionClosed      = 1004
	ErrWebSocketUpgrade   = 1005
	ErrBadMessageFormat   = 1006
	ErrUnknownMessageType = 1007
	ErrRateLimited        = 1008

	ErrUserNotFound      = 1101
	ErrOrderNotFound     = 1102
	ErrConflict          = 1103
	ErrRetryExhausted    = 1104
	ErrLockTimeout       = 1105
	ErrInvalidTransition = 1106
	ErrNotAvailable      = 1107
	ErrInvalidListing    = 1108
	ErrInvalidAmount     = 1109

	ErrInternalServer = 500
)

// Sentinels for errors.Is. Matching is by Code, so a Wrap'd or New'd error
// with the same code compares equal.
var (
	AuctionNotFound   = New(ErrAuctionNotFound, "auction not found")
	UserNotFound      = New(ErrUserNotFound, "user not found")
	OrderNotFound     = New(ErrOrderNotFound, "order not found")
	Conflict          = New(ErrConflict, "concurrent modification")
	RetryExhausted    = New(ErrRetryExhausted, "too many concurrent updates, try again")
	LockTimeout       = New(ErrLockTimeout, "timed out waiting for auction lock")
	InvalidTransition = New(ErrInvalidTransition, "invalid status transition")
	NotAvailable      = New(ErrNotAvailable, "auction is not available for this operation")
	InvalidListing    = New(ErrInvalidListing, "invalid listing")
	InvalidAmount     = New(ErrInvalidAmount, "amount must be in whole cents")
)

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError carrying the same non-zero code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code != 0 && e.Code == t.Code
}

// ToJSON renders the error as a websocket error frame.
func (e *AppError) ToJSON() string {
	b, err := json.Marshal(struct {
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{"error", e.Code, e.Message})
	if err != nil {
		return `{"type": "error", "message": "Internal server error"}`
	}
	return string(b)
}

// Wrapping utility
func Wrap(err error, message string) *AppError {
	return &AppError{Message: message, Err: err}
}

// WrapCode wraps err and tags it with code so errors.Is matches the sentinel.
func WrapCode(code int, err error, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Error creation utility
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// CodeOf returns the code of the first AppError in err's chain with a
// non-zero code, or 0.
func CodeOf(err error) int {
	for err != nil {
		var app *AppError
		if !stderrors.As(err, &app) {
			return 0
		}
		if app.Code != 0 {
			return app.Code
		}
		err = app.Err
	}
	return 0
}

// Is and As forward to the standard library so callers need one import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
