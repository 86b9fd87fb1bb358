package agent

import "testing"

func TestUnparkCreatesVehicleLazily(t *testing.T) {
	g := NewGarage(nil)
	driver := &Agent{ID: 1}

	v := g.UnparkVeh(driver, 100, 999) // 999 is an unknown vehicle type
	if v.Type.ID != DefaultVehicleType.ID {
		t.Fatalf("expected DefaultVehicleType for unknown type id, got %+v", v.Type)
	}
	if v.Driver != driver {
		t.Fatal("expected driver assigned")
	}

	again, ok := g.Lookup(100)
	if !ok || again != v {
		t.Fatal("expected the same vehicle instance to be reused")
	}
}

func TestUnparkUsesDeclaredType(t *testing.T) {
	declared := map[uint64]VehicleType{5: {ID: 5, MaxV: 42}}
	g := NewGarage(declared)
	v := g.UnparkVeh(&Agent{ID: 1}, 1, 5)
	if v.Type.MaxV != 42 {
		t.Fatalf("expected declared type, got %+v", v.Type)
	}
}

func TestParkReturnsDriverAndPassengers(t *testing.T) {
	g := NewGarage(nil)
	driver := &Agent{ID: 1}
	passenger := &Agent{ID: 2}
	v := g.UnparkVeh(driver, 10, 0)
	v.Passengers = []*Agent{passenger}

	agents := g.ParkVeh(v)
	if len(agents) != 2 || agents[0] != driver || agents[1] != passenger {
		t.Fatalf("got %+v", agents)
	}
	if v.Driver != nil || v.Passengers != nil {
		t.Fatal("expected vehicle released after parking")
	}
}

func TestVehicleIDForExplicitOrSynthesized(t *testing.T) {
	explicit := uint64(77)
	route := Route{VehicleID: &explicit}
	got := VehicleIDFor(route, 1, "car", func(s string) uint64 { return 0 })
	if got != 77 {
		t.Fatalf("got %d, want explicit 77", got)
	}

	var calledWith string
	route2 := Route{}
	VehicleIDFor(route2, 42, "bike", func(s string) uint64 {
		calledWith = s
		return 1
	})
	if calledWith != "42_bike" {
		t.Fatalf("got synthesized id %q, want 42_bike", calledWith)
	}
}
