package engine

import (
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/events"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/queue"
)

type teleported struct {
	vehicle     *agent.Vehicle
	arrivalTime uint32
}

// TeleportationEngine holds every vehicle travelling a teleported leg,
// keyed by its arrival time, and delivers it to the activity engine
// (via the leg engine's arrival handler) once popped.
type TeleportationEngine struct {
	queue     *queue.TimeQueue[teleported]
	publisher *events.Publisher
	broker    Broker

	// partitionOf reports which partition owns a link; used to decide
	// whether a teleported leg crosses partitions.
	partitionOf  func(linkID uint64) int
	ownPartition int

	onArrival func(now uint32, v *agent.Vehicle, distance float64, mode, line, route string)
}

// NewTeleportationEngine builds a teleportation engine for the given
// partition.
func NewTeleportationEngine(pub *events.Publisher, broker Broker, ownPartition int, partitionOf func(uint64) int) *TeleportationEngine {
	return &TeleportationEngine{
		queue: queue.New[teleported](), publisher: pub, broker: broker,
		partitionOf: partitionOf, ownPartition: ownPartition,
	}
}

// SetArrivalHandler wires the callback invoked when a teleported
// vehicle arrives: the leg engine's HandleTeleportArrival.
func (e *TeleportationEngine) SetArrivalHandler(f func(now uint32, v *agent.Vehicle, distance float64, mode, line, route string)) {
	e.onArrival = f
}

// Depart admits a vehicle departing on a teleported leg. A local leg
// (end link on this partition) is queued by arrival time; a
// cross-partition leg has its route cursor advanced to the end link
// and is handed to the broker instead, to be re-queued on the
// destination worker.
func (e *TeleportationEngine) Depart(now uint32, ag *agent.Agent, v *agent.Vehicle, route agent.Route, mode string) {
	travelTime := uint32(0)
	if route.TravelTime != nil {
		travelTime = *route.TravelTime
	}
	arrival := now + travelTime

	if e.partitionOf(route.EndLink) == e.ownPartition {
		e.queue.Push(arrival, teleported{vehicle: v, arrivalTime: arrival})
		return
	}

	v.RouteCursor = len(route.Links) // past-the-end: current link is the leg's end link
	e.broker.AddTeleportVeh(v, arrival, now)
}

// Receive re-admits a vehicle handed in by the broker for a
// cross-partition teleported leg that has arrived on this, its
// destination, partition. Delivered immediately if its arrival time
// has already passed.
func (e *TeleportationEngine) Receive(now uint32, v *agent.Vehicle, arrivalTime uint32) {
	if arrivalTime <= now {
		e.deliver(now, v)
		return
	}
	e.queue.Push(arrivalTime, teleported{vehicle: v, arrivalTime: arrivalTime})
}

// DoStep pops every vehicle whose arrival time has come and delivers
// it.
func (e *TeleportationEngine) DoStep(now uint32) {
	for _, t := range e.queue.PopReady(now) {
		e.deliver(now, t.vehicle)
	}
}

func (e *TeleportationEngine) deliver(now uint32, v *agent.Vehicle) {
	route := v.Driver.CurrentLeg().Route
	mode := v.Driver.CurrentLeg().Mode
	distance := 0.0
	if route.Distance != nil {
		distance = *route.Distance
	}
	line, rte := "", ""
	if route.Kind == agent.RouteTransit {
		line, rte = route.TransitLine, route.TransitRoute
	}
	e.onArrival(now, v, distance, mode, line, rte)
}
