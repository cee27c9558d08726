package window

import "errors"

var (
	// ErrNavigationRejected means a session was available but refused the
	// navigation. The new entry was discarded.
	ErrNavigationRejected = errors.New("navigation rejected by session")
	// ErrClosed is returned by commands on a destroyed window.
	ErrClosed = errors.New("window closed")
)
