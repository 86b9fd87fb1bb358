package engine

import (
	"testing"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/events"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/network"
)

// fakeBroker satisfies Broker without exercising any cross-partition
// behaviour; none of these tests hand a vehicle across a partition
// boundary.
type fakeBroker struct{}

func (fakeBroker) AddNetworkVeh(v *agent.Vehicle, linkID uint64, now uint32)          {}
func (fakeBroker) AddTeleportVeh(v *agent.Vehicle, arrivalTime uint32, now uint32)    {}
func (fakeBroker) AddCapUpdate(linkID uint64, released float64, fromPartition int, now uint32) {}

// vehicleOnRoute builds a driver/vehicle pair whose leg route starts at
// startLink and continues through links, bypassing the leg engine so
// these tests can push straight onto the network engine.
func vehicleOnRoute(id, startLink uint64, links []uint64, endLink uint64) *agent.Vehicle {
	driver := &agent.Agent{
		ID: id,
		Plan: agent.Plan{
			Activities: []agent.Activity{{Link: startLink, ActType: "home"}, {Link: endLink, ActType: "work"}},
			Legs: []agent.Leg{{Mode: "car", Route: agent.Route{
				Kind: agent.RouteNetwork, StartLink: startLink, EndLink: endLink, Links: links,
			}}},
		},
	}
	return &agent.Vehicle{ID: id, Type: agent.DefaultVehicleType, Driver: driver}
}

type arrival struct {
	now uint32
	veh uint64
}

// TestFlowCapThrottlesSecondVehicle drives spec.md §8's E2 scenario: two
// vehicles queued on the same link both reach the buffer at the same
// tick, but a flow cap of 0.1 veh/s only lets one of them pop that
// tick; the second must wait for the banked deficit to clear.
func TestFlowCapThrottlesSecondVehicle(t *testing.T) {
	net := network.NewNetwork()
	n1 := &network.Node{ID: 1}
	n2 := &network.Node{ID: 2}
	net.AddNode(n1)
	net.AddNode(n2)
	// length 100, freespeed 10 -> 10s traversal; capacity 3600/h, sample
	// 0.1 -> flow cap 0.1 veh/s.
	linkA := network.NewLocalLink(10, 1, 2, 100, 10, 1, 3600, 0.1, 7.5, 3600)
	net.AddLink(linkA)

	pub := events.NewPublisher()
	sink := events.NewMemorySink()
	pub.OnAny(sink)

	var arrivals []arrival
	onArrival := func(now uint32, v *agent.Vehicle) {
		arrivals = append(arrivals, arrival{now: now, veh: v.VehicleID()})
	}

	eng := NewNetworkEngine(net, pub, fakeBroker{}, onArrival)

	v1 := vehicleOnRoute(1, 10, nil, 10) // single-link route: no next link
	v2 := vehicleOnRoute(2, 10, nil, 10)
	linkA.PushVeh(v1, 0)
	linkA.PushVeh(v2, 0)

	for now := uint32(0); now <= 20; now++ {
		eng.Step(now)
	}

	if len(arrivals) != 2 {
		t.Fatalf("got %d arrivals, want 2: %+v", len(arrivals), arrivals)
	}
	if arrivals[0].now != 10 || arrivals[0].veh != 1 {
		t.Errorf("first arrival = %+v, want {10 1}", arrivals[0])
	}
	if arrivals[1].now != 20 || arrivals[1].veh != 2 {
		t.Errorf("second arrival = %+v, want {20 2}", arrivals[1])
	}
}

// TestStuckVehicleForcedAheadUnderStorageDebt drives E4: a vehicle
// stuck at a link whose downstream neighbor has no storage is forced
// across once the stuck threshold elapses, emitting a distinguishing
// event, rather than waiting indefinitely.
func TestStuckVehicleForcedAheadUnderStorageDebt(t *testing.T) {
	net := network.NewNetwork()
	n1 := &network.Node{ID: 1}
	n2 := &network.Node{ID: 2}
	n3 := &network.Node{ID: 3}
	net.AddNode(n1)
	net.AddNode(n2)
	net.AddNode(n3)

	// Link A: cap 1 veh/h, stuck threshold 5s.
	linkA := network.NewLocalLink(10, 1, 2, 100, 10, 1, 1, 1, 7.5, 5)
	// Link B: tiny storage (well under one vehicle's PCE), pre-filled to
	// exhaustion below, and zero flow capacity so the filler vehicle
	// never leaves B and frees that storage.
	linkB := network.NewLocalLink(20, 2, 3, 1, 10, 1, 0, 0.001, 7.5, 5)
	net.AddLink(linkA)
	net.AddLink(linkB)

	// Exhaust B's storage so IsAvailable() is false for the whole test.
	filler := vehicleOnRoute(99, 20, nil, 20)
	linkB.PushVeh(filler, 0)
	linkB.ApplyStorageCapUpdates()
	if linkB.IsAvailable() {
		t.Fatal("test setup: link B should have no storage available")
	}

	pub := events.NewPublisher()
	sink := events.NewMemorySink()
	pub.OnAny(sink)

	eng := NewNetworkEngine(net, pub, fakeBroker{}, func(uint32, *agent.Vehicle) {})

	v := vehicleOnRoute(1, 10, []uint64{20}, 20)
	linkA.PushVeh(v, 0) // earliest_exit = 10

	for now := uint32(0); now < 15; now++ {
		eng.Step(now)
		for _, e := range sink.Events() {
			if e.Kind() == events.KindVehicleForcedAhead {
				t.Fatalf("vehicle forced ahead at t=%d, before stuck_threshold elapsed", now)
			}
		}
		if now >= 10 && (linkA.QueueLen() != 0 || linkA.BufferLen() != 1) {
			t.Fatalf("at t=%d, vehicle should still be buffered on link A, got queue=%d buffer=%d", now, linkA.QueueLen(), linkA.BufferLen())
		}
	}

	eng.Step(15)

	var forced *events.VehicleForcedAhead
	for _, e := range sink.Events() {
		if fa, ok := e.(events.VehicleForcedAhead); ok {
			forced = &fa
		}
	}
	if forced == nil {
		t.Fatal("expected a vehicle forced ahead event at t=15")
	}
	if forced.Time() != 15 || forced.Link != 20 || forced.Vehicle != 1 {
		t.Errorf("forced-ahead event = %+v, want {time:15 link:20 vehicle:1}", forced)
	}
	if linkA.BufferLen() != 0 {
		t.Errorf("link A should have released its buffer head, got buffer len %d", linkA.BufferLen())
	}
	if linkB.QueueLen() != 1 {
		t.Errorf("link B should have received the forced vehicle, got queue len %d", linkB.QueueLen())
	}
}
