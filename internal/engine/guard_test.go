package engine

import "testing"

func TestFlightGuard_AcquireAndRelease(t *testing.T) {
	g := newFlightGuard(3)

	if g.State() != guardIdle {
		t.Fatal("new guard must be idle")
	}
	if got := g.Tick(); got != tickAcquired {
		t.Fatalf("first tick: got %v, want acquired", got)
	}
	if g.State() != guardInFlight {
		t.Error("guard must be in flight after acquisition")
	}

	g.Release()
	if g.State() != guardIdle {
		t.Error("guard must be idle after release")
	}
	if got := g.Tick(); got != tickAcquired {
		t.Errorf("tick after release: got %v, want acquired", got)
	}
}

func TestFlightGuard_SkipsThenForcesRetry(t *testing.T) {
	g := newFlightGuard(3)

	if got := g.Tick(); got != tickAcquired {
		t.Fatalf("tick 1: got %v, want acquired", got)
	}

	// Ticks 2-4 fire while the request is outstanding: skipped.
	for i := 2; i <= 4; i++ {
		if got := g.Tick(); got != tickSkipped {
			t.Fatalf("tick %d: got %v, want skipped", i, got)
		}
	}
	if g.SkippedCount() != 3 {
		t.Errorf("skipped count: got %d, want 3", g.SkippedCount())
	}

	// The 4th tick with the request still outstanding exceeds the
	// threshold and proceeds anyway.
	if got := g.Tick(); got != tickForcedRetry {
		t.Fatalf("tick 5: got %v, want forced retry", got)
	}
	if g.SkippedCount() != 0 {
		t.Errorf("forced retry must reset the skip counter, got %d", g.SkippedCount())
	}

	// The skip cycle restarts against the still-outstanding request.
	if got := g.Tick(); got != tickSkipped {
		t.Errorf("tick 6: got %v, want skipped", got)
	}
}

func TestFlightGuard_ReleaseResetsSkipCycle(t *testing.T) {
	g := newFlightGuard(3)

	g.Tick()
	g.Tick() // skipped
	g.Tick() // skipped
	g.Release()

	if got := g.Tick(); got != tickAcquired {
		t.Fatalf("tick after release: got %v, want acquired", got)
	}
	if g.SkippedCount() != 0 {
		t.Errorf("acquisition must reset the skip counter, got %d", g.SkippedCount())
	}
}
