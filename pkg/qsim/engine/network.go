package engine

import (
	"math/rand"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/events"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/network"
)

// Broker is the network engine's view of the partition message broker:
// enough to hand off a boundary vehicle and an upstream storage
// credit. pkg/qsim/broker.Broker satisfies this.
type Broker interface {
	AddNetworkVeh(v *agent.Vehicle, linkID uint64, now uint32)
	AddTeleportVeh(v *agent.Vehicle, arrivalTime uint32, now uint32)
	AddCapUpdate(linkID uint64, released float64, fromPartition int, now uint32)
}

// ArrivalFunc is called when a vehicle has consumed its entire route:
// the network engine hands it back through parking to the activity
// engine via this hook, which the simulation driver wires up.
type ArrivalFunc func(now uint32, v *agent.Vehicle)

// NetworkEngine runs the per-tick node-movement routine over a
// partition's nodes, in ascending node-id order, then finalizes
// storage bookkeeping and broker hand-offs via MoveLinks.
type NetworkEngine struct {
	net       *network.Network
	publisher *events.Publisher
	broker    Broker
	onArrival ArrivalFunc
}

// NewNetworkEngine builds a network engine over net, publishing events
// to pub, exchanging boundary vehicles/credits via broker, and
// delivering route-complete vehicles to onArrival.
func NewNetworkEngine(net *network.Network, pub *events.Publisher, broker Broker, onArrival ArrivalFunc) *NetworkEngine {
	return &NetworkEngine{net: net, publisher: pub, broker: broker, onArrival: onArrival}
}

// Step runs node-movement for every node in this partition, in
// ascending node-id order, then MoveLinks.
func (e *NetworkEngine) Step(now uint32) {
	for _, node := range e.net.OrderedNodes() {
		e.stepNode(node, now)
	}
	e.MoveLinks(now)
}

func (e *NetworkEngine) stepNode(node *network.Node, now uint32) {
	for _, l := range node.InLinks {
		l.UpdateCapacity(now)
		l.FillBuffer(now)
	}

	excluded := make(map[uint64]bool)
	rng := rand.New(rand.NewSource(int64(node.ID)*1_000_003 + int64(now)))

	for {
		type offering struct {
			link network.QueueLink
			veh  network.Vehicle
		}
		var offers []offering
		for _, l := range node.InLinks {
			if excluded[l.ID()] {
				continue
			}
			if v, ok := l.OffersVeh(now); ok {
				offers = append(offers, offering{link: l, veh: v})
			}
		}
		if len(offers) == 0 {
			return
		}

		chosen := offers[0]
		if len(offers) > 1 {
			var total float64
			for _, o := range offers {
				w := o.link.FlowCapValue()
				if w <= 0 {
					w = 1e-10
				}
				total += w
			}
			pick := rng.Float64() * total
			var acc float64
			for _, o := range offers {
				w := o.link.FlowCapValue()
				if w <= 0 {
					w = 1e-10
				}
				acc += w
				if pick <= acc {
					chosen = o
					break
				}
			}
		}

		if !e.moveOne(chosen.link, chosen.veh, now) {
			excluded[chosen.link.ID()] = true
		}
	}
}

// moveOne executes steps 4-8 of spec.md §4.2 for the chosen in-link's
// offered vehicle. It returns false if the vehicle was left in place
// (the caller must exclude this in-link from further consideration
// this node step).
func (e *NetworkEngine) moveOne(in network.QueueLink, v network.Vehicle, now uint32) bool {
	veh, _ := v.(*agent.Vehicle)
	nextLinkID, hasNext := veh.NextLinkID()
	forced := in.IsVehStuck(now)

	if !hasNext {
		in.PopVeh()
		e.publisher.Publish(events.NewLinkLeave(now, in.ID(), veh.VehicleID()))
		e.onArrival(now, veh)
		return true
	}

	out, ok := e.net.Link(nextLinkID)
	if !ok {
		// Route points outside this partition's known links: treat as
		// a hand-off boundary the broker will resolve remotely.
		in.PopVeh()
		e.publisher.Publish(events.NewLinkLeave(now, in.ID(), veh.VehicleID()))
		veh.AdvanceRoute()
		e.broker.AddNetworkVeh(veh, nextLinkID, now)
		return true
	}

	if outLink, ok := out.(network.OutLink); ok {
		in.PopVeh()
		e.publisher.Publish(events.NewLinkLeave(now, in.ID(), veh.VehicleID()))
		outLink.PushVeh(v)
		veh.AdvanceRoute()
		return true
	}

	outQueue := out.(network.QueueLink)
	if outQueue.IsAvailable() || forced {
		in.PopVeh()
		e.publisher.Publish(events.NewLinkLeave(now, in.ID(), veh.VehicleID()))
		if forced && !outQueue.IsAvailable() {
			e.publisher.Publish(events.NewVehicleForcedAhead(now, outQueue.ID(), veh.VehicleID()))
		}
		outQueue.PushVeh(v, now)
		e.publisher.Publish(events.NewLinkEnter(now, outQueue.ID(), veh.VehicleID()))
		veh.AdvanceRoute()
		return true
	}

	return false
}

// MoveLinks finalizes this tick's storage bookkeeping for every local
// and split-in link, ships upstream storage credits for split-in
// links that released storage this tick, and drains every split-out
// link's outbound queue into the broker.
func (e *NetworkEngine) MoveLinks(now uint32) {
	for _, l := range e.net.Links {
		switch link := l.(type) {
		case *network.SplitInLink:
			released := link.Released()
			link.ApplyStorageCapUpdates()
			if released > 0 {
				e.broker.AddCapUpdate(link.ID(), released, link.FromPartition, now)
			}
		case *network.SplitOutLink:
			for _, v := range link.TakeVeh() {
				if veh, ok := v.(*agent.Vehicle); ok {
					e.broker.AddNetworkVeh(veh, link.ID(), now)
				}
			}
		case *network.LocalLink:
			link.ApplyStorageCapUpdates()
		}
	}
}
