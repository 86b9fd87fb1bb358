package agent

import "testing"

func u32(v uint32) *uint32 { return &v }

func TestActivityEffectiveEndTimeExplicitEndTime(t *testing.T) {
	a := Activity{EndTime: u32(100)}
	if got := a.EffectiveEndTime(50); got != 100 {
		t.Fatalf("got %d, want 100", got)
	}
}

func TestActivityEffectiveEndTimeMaxDurFromBegin(t *testing.T) {
	a := Activity{MaxDur: u32(30)}
	if got := a.EffectiveEndTime(50); got != 80 {
		t.Fatalf("got %d, want 80 (measured from begin_time, not now)", got)
	}
}

func TestActivityEffectiveEndTimeOpenEnded(t *testing.T) {
	a := Activity{}
	if got := a.EffectiveEndTime(50); got != 4294967295 {
		t.Fatalf("got %d, want max uint32 sentinel", got)
	}
}

func TestActivityEffectiveEndTimeEarlierOfBothWins(t *testing.T) {
	a := Activity{EndTime: u32(200), MaxDur: u32(10)}
	if got := a.EffectiveEndTime(50); got != 60 {
		t.Fatalf("got %d, want 60 (begin+max_dur earlier than end_time)", got)
	}
}

func TestAgentAdvanceResetsRouteCursor(t *testing.T) {
	a := &Agent{
		Plan: Plan{
			Activities: []Activity{{ActType: "home"}, {ActType: "work"}},
			Legs:       []Leg{{Mode: "car", Route: Route{Kind: RouteNetwork, Links: []uint64{1, 2, 3}}}},
		},
	}
	if !a.HasNextLeg() {
		t.Fatal("expected a leg after the first activity")
	}
	a.RouteCursor = 2
	a.AdvanceToActivity()
	if a.PlanCursor != 1 || a.RouteCursor != 0 {
		t.Fatalf("got cursor=%d routeCursor=%d", a.PlanCursor, a.RouteCursor)
	}
	if a.HasNextLeg() {
		t.Fatal("last activity should have no following leg")
	}
}
