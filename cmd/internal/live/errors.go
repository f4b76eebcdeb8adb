package live

import "errors"

var (
	// ErrRoleDenied is returned by a role-gated command when the current
	// scope lacks the required role. No network call is made. This is a
	// client-side convenience check only, not a substitute for server-side
	// authorization.
	ErrRoleDenied = errors.New("role denied")

	// ErrStreamOpen is returned when Open is called on a stream that is
	// not CLOSED. One stream owns at most one push channel.
	ErrStreamOpen = errors.New("stream already open")
)
