/*
Package resilience provides the circuit breaker that guards renderer session
creation and the headless renderer's outbound fetches.

A window whose session factory keeps failing must stop hammering it and
report the condition once; the breaker turns repeated spawn failures into
ErrCircuitOpen, which the session manager maps to a fatal-to-window error.

# Usage

	breaker := resilience.New("session-factory", resilience.Settings{
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.ConsecutiveFailures(5),
	})

	proc, err := resilience.Call(breaker, func() (render.Process, error) {
		return factory.Spawn(ctx, req)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                            |
	                                        [failure]
	                                            v
	                                           Open
*/
package resilience
