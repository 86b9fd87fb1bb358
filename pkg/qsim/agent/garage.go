package agent

import "fmt"

// Garage owns vehicle instances between legs, keyed by vehicle id.
// A vehicle with no pre-declared vehicles.xml/proto entry is created
// lazily, with DefaultVehicleType, on first unpark.
type Garage struct {
	types    map[uint64]VehicleType
	vehicles map[uint64]*Vehicle
}

// NewGarage creates an empty garage; declared will be consulted for
// vehicle types registered up front (from a scenario's vehicles
// file), looked up by vehicle type id.
func NewGarage(declared map[uint64]VehicleType) *Garage {
	if declared == nil {
		declared = make(map[uint64]VehicleType)
	}
	return &Garage{types: declared, vehicles: make(map[uint64]*Vehicle)}
}

// VehicleIDFor resolves the vehicle id a leg should unpark: an
// explicit id from the route if present, else the
// "{agent_id}_{mode}" synthesized fallback.
func VehicleIDFor(route Route, agentID uint64, mode string, idOf func(string) uint64) uint64 {
	if route.VehicleID != nil {
		return *route.VehicleID
	}
	return idOf(fmt.Sprintf("%d_%s", agentID, mode))
}

// UnparkVeh returns the vehicle instance for vehicleID, creating it
// with vehicleTypeID's declared type (or DefaultVehicleType if
// unknown) the first time it's requested, and assigns agent as driver.
func (g *Garage) UnparkVeh(agent *Agent, vehicleID, vehicleTypeID uint64) *Vehicle {
	v, ok := g.vehicles[vehicleID]
	if !ok {
		typ, ok := g.types[vehicleTypeID]
		if !ok {
			typ = DefaultVehicleType
		}
		v = &Vehicle{ID: vehicleID, Type: typ}
		g.vehicles[vehicleID] = v
	}
	v.Driver = agent
	v.Passengers = nil
	v.RouteCursor = 0
	return v
}

// ParkVeh releases the driver and any passengers back to the caller
// (the activity engine receives them as this tick's leg-arrivals) and
// leaves the vehicle instance in the garage for reuse.
func (g *Garage) ParkVeh(v *Vehicle) []*Agent {
	agents := make([]*Agent, 0, 1+len(v.Passengers))
	if v.Driver != nil {
		agents = append(agents, v.Driver)
	}
	agents = append(agents, v.Passengers...)
	v.Driver = nil
	v.Passengers = nil
	return agents
}

// Lookup returns the vehicle currently parked or travelling with id,
// if the garage has ever created one.
func (g *Garage) Lookup(vehicleID uint64) (*Vehicle, bool) {
	v, ok := g.vehicles[vehicleID]
	return v, ok
}

// InFlightCount reports how many vehicles this garage has created are
// currently travelling (have a driver), for the in-flight-vehicles
// gauge.
func (g *Garage) InFlightCount() int {
	n := 0
	for _, v := range g.vehicles {
		if v.Driver != nil {
			n++
		}
	}
	return n
}
