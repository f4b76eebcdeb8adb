package auth

import "errors"

var (
	// ErrNoCredential is returned when an operation requires a current
	// credential and none is held.
	ErrNoCredential = errors.New("no credential available")

	// ErrExchangeRejected is returned when sign-in completes transport-wise
	// but the server does not grant an identified token. The previous
	// credential/scope pair stays installed.
	ErrExchangeRejected = errors.New("sign in rejected")
)
