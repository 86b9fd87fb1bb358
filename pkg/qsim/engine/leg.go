package engine

import (
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/events"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/network"
)

// LegEngine dispatches a departing agent to either the network engine
// (main network modes with a network route) or the teleportation
// engine, and handles both engines' arrivals by parking the vehicle
// and handing its occupants back to the activity engine.
type LegEngine struct {
	garage    *agent.Garage
	publisher *events.Publisher
	net       *network.Network
	teleport  *TeleportationEngine

	mainNetworkModes map[string]bool
	internID         func(string) uint64
	onActivityArrival func(now uint32, ag *agent.Agent)
}

// NewLegEngine builds a leg engine. mainNetworkModes names the leg
// modes dispatched to the network engine when paired with a network
// route; internID resolves a string vehicle id to its interned form
// for the "{agent_id}_{mode}" fallback; onActivityArrival is the
// activity engine's ReceiveAgent hook.
func NewLegEngine(
	garage *agent.Garage,
	pub *events.Publisher,
	net *network.Network,
	teleport *TeleportationEngine,
	mainNetworkModes map[string]bool,
	internID func(string) uint64,
	onActivityArrival func(now uint32, ag *agent.Agent),
) *LegEngine {
	return &LegEngine{
		garage: garage, publisher: pub, net: net, teleport: teleport,
		mainNetworkModes: mainNetworkModes, internID: internID,
		onActivityArrival: onActivityArrival,
	}
}

// Depart dispatches ag, which has just ended its current activity, on
// its next leg.
func (e *LegEngine) Depart(now uint32, ag *agent.Agent) {
	ag.AdvanceToLeg()
	leg := ag.CurrentLeg()
	route := leg.Route

	vehID := agent.VehicleIDFor(route, ag.ID, leg.Mode, e.internID)
	e.publisher.Publish(events.NewDeparture(now, ag.ID, route.StartLink, leg.Mode))

	veh := e.garage.UnparkVeh(ag, vehID, vehID)
	veh.RouteCursor = 0

	isNetworkLeg := e.mainNetworkModes[leg.Mode] && route.Kind == agent.RouteNetwork
	if isNetworkLeg {
		e.publisher.Publish(events.NewPersonEntersVehicle(now, ag.ID, vehID))
		for _, p := range veh.Passengers {
			e.publisher.Publish(events.NewPersonEntersVehicle(now, p.ID, vehID))
		}
		e.publisher.Publish(events.NewVehicleEntersTraffic(now, ag.ID, vehID, route.StartLink, leg.Mode, 1.0))
		if l, ok := e.net.Link(route.StartLink); ok {
			if ql, ok := l.(network.QueueLink); ok {
				ql.PushVeh(veh, now)
			}
		}
		return
	}

	e.teleport.Depart(now, ag, veh, route, leg.Mode)
}

// HandleNetworkArrival is the network engine's onArrival hook: it
// parks the vehicle and returns every occupant to the activity engine.
func (e *LegEngine) HandleNetworkArrival(now uint32, v *agent.Vehicle) {
	endLink := v.Driver.CurrentLeg().Route.EndLink
	mode := v.Driver.CurrentLeg().Mode
	e.publisher.Publish(events.NewVehicleLeavesTraffic(now, v.Driver.ID, v.VehicleID(), endLink, mode, 1.0))
	e.publisher.Publish(events.NewPersonLeavesVehicle(now, v.Driver.ID, v.VehicleID()))
	for _, p := range v.Passengers {
		e.publisher.Publish(events.NewPersonLeavesVehicle(now, p.ID, v.VehicleID()))
	}
	e.publisher.Publish(events.NewArrival(now, v.Driver.ID, endLink, mode))

	for _, ag := range e.garage.ParkVeh(v) {
		ag.AdvanceToActivity()
		e.onActivityArrival(now, ag)
	}
}

// HandleTeleportArrival is the teleportation engine's arrival hook: it
// emits Travelled (or TravelledWithPt for a transit leg), then parks
// the vehicle and returns every occupant to the activity engine.
func (e *LegEngine) HandleTeleportArrival(now uint32, v *agent.Vehicle, distance float64, mode, line, route string) {
	driverID := v.Driver.ID
	if line != "" {
		e.publisher.Publish(events.NewTravelledWithPt(now, driverID, distance, mode, line, route))
	} else {
		e.publisher.Publish(events.NewTravelled(now, driverID, distance, mode))
	}

	for _, ag := range e.garage.ParkVeh(v) {
		ag.AdvanceToActivity()
		e.onActivityArrival(now, ag)
	}
}
