package session

import "errors"

var (
	// ErrSessionCreationFailed means the process factory could not start a
	// renderer. Nothing changed; the navigation may be retried.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrViewCreationFailed means a renderer started but its view could not
	// be created. The session was discarded.
	ErrViewCreationFailed = errors.New("view creation failed")
	// ErrFactoryUnavailable means the process factory is refusing work
	// because it failed too often.
	ErrFactoryUnavailable = errors.New("session factory unavailable")
)
