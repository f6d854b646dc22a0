package auth

import "errors"

var (
	// ErrLoginFailed is returned when the login handshake completed but the
	// target did not accept the credentials, or when it could not be sent.
	ErrLoginFailed = errors.New("login failed")

	// ErrIncompleteConfig is returned when the mode's required fields are
	// missing. No login is attempted in that case.
	ErrIncompleteConfig = errors.New("authentication config incomplete")
)
