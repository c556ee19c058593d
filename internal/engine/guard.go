package engine

import "sync"

// tickResult is the decision a flight guard hands back for one timer tick.
type tickResult int

const (
	// tickAcquired means no request was outstanding; the caller should
	// issue one and Release when its response is processed.
	tickAcquired tickResult = iota
	// tickSkipped means a request is still in flight and this tick does
	// nothing.
	tickSkipped
	// tickForcedRetry means the skip threshold was exceeded; the caller
	// issues a new request even though the previous one has not
	// completed. Liveness over strict single-flight: both responses may
	// land, last writer wins.
	tickForcedRetry
)

// guardState is the externally visible state of a flight guard.
type guardState int

const (
	guardIdle guardState = iota
	guardInFlight
	guardSkipped
)

// flightGuard bounds the outstanding requests of one periodic protocol.
// Each tick either acquires the guard, skips, or (after more than threshold
// consecutive skips) forces a retry so a stuck remote call cannot starve the
// protocol indefinitely.
type flightGuard struct {
	mu        sync.Mutex
	inFlight  bool
	skipped   int
	threshold int
}

func newFlightGuard(threshold int) *flightGuard {
	return &flightGuard{threshold: threshold}
}

// Tick advances the state machine for one timer firing.
func (g *flightGuard) Tick() tickResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight {
		g.skipped++
		if g.skipped > g.threshold {
			g.skipped = 0
			return tickForcedRetry
		}
		return tickSkipped
	}
	g.inFlight = true
	g.skipped = 0
	return tickAcquired
}

// Release clears the in-flight flag. It is called exactly once per issued
// request, when its response (success or failure) has been processed.
func (g *flightGuard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
}

// State reports the current guard state for introspection.
func (g *flightGuard) State() guardState {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case !g.inFlight:
		return guardIdle
	case g.skipped > 0:
		return guardSkipped
	default:
		return guardInFlight
	}
}

// SkippedCount returns the consecutive skips since the last issued request.
func (g *flightGuard) SkippedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.skipped
}
