/*
Package session implements the per-window session state machine.

A window has at most one current renderer session and, while a cross-site
navigation is in flight, one pending session:

	NoSession -> SingleSession           first navigation
	SingleSession -> SwapPending         navigation to another site
	SwapPending -> SingleSession         pending commit, or back to current site
	SingleSession|SwapPending -> Crashed current renderer gone
	Crashed -> SingleSession             next navigation

The old session is closed only after the pending one has become current.
The Manager is not safe for concurrent use; the browser loop serializes
every call.
*/
package session
