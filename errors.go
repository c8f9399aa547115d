package roomcast

import (
	"errors"
	"strings"
)

// Protocol and authentication errors. All of these are handled locally and
// converted into "<verb>-err" frames for the originating connection; none
// of them ever closes a connection.
var (
	// Authentication errors.
	ErrUnknownUser          = errors.New("roomcast: unknown user")
	ErrInvalidKey           = errors.New("roomcast: invalid auth key")
	ErrNotAuthenticated     = errors.New("roomcast: not authenticated")
	ErrAlreadyAuthenticated = errors.New("roomcast: already authenticated")
	ErrLookupFailed         = errors.New("roomcast: directory lookup failed")

	// Join errors.
	ErrUnknownChannel      = errors.New("roomcast: unknown channel")
	ErrPermissionDenied    = errors.New("roomcast: permission denied")
	ErrAuthorizationFailed = errors.New("roomcast: channel authorization failed")

	// Frame errors.
	ErrMissingArgument = errors.New("roomcast: missing required argument")
	ErrMissingType     = errors.New("roomcast: missing frame type")
	ErrMalformedFrame  = errors.New("roomcast: malformed frame")

	// Configuration errors.
	ErrNoDirectory = errors.New("roomcast: a user directory is required")
)

// wireMessage is the message argument a "<verb>-err" frame carries for err:
// the error text without the package prefix.
func wireMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "roomcast: ")
}
