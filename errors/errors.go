package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Relay
	ErrDuplicateConnection = fmt.Errorf("connection already registered")
	ErrHandshakeRejected   = fmt.Errorf("handshake rejected")
	ErrDeliveryFailure     = fmt.Errorf("delivery failure")
	ErrTransportLost       = fmt.Errorf("transport lost")
	ErrRelayStopped        = fmt.Errorf("relay stopped")
	ErrConnectionClosed    = fmt.Errorf("connection closed")

	// Client session
	ErrReconnectExhausted = fmt.Errorf("reconnect attempts exhausted")
	ErrNotConnected       = fmt.Errorf("session not connected")
	ErrSessionEnded       = fmt.Errorf("session ended")

	// Accounts
	ErrInvalidCredentials    = fmt.Errorf("invalid username or password")
	ErrUserAlreadyExists     = fmt.Errorf("username already exists")
	ErrUserNotFound          = fmt.Errorf("user not found")
	ErrInvalidUsername       = fmt.Errorf("username must be 3-20 characters long")
	ErrInvalidPassword       = fmt.Errorf("password must be at least 8 characters long")
	ErrInvalidProfilePicture = fmt.Errorf("profile picture must be a PNG or JPEG image")
	ErrProfilePictureTooBig  = fmt.Errorf("profile picture must be less than 5MB")
	ErrTokenGeneration       = fmt.Errorf("token generation failed")
)

// HTTPStatus maps a service error to the status code returned by the account endpoints.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrHandshakeRejected):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUserAlreadyExists),
		errors.Is(err, ErrInvalidUsername),
		errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrInvalidProfilePicture),
		errors.Is(err, ErrProfilePictureTooBig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
