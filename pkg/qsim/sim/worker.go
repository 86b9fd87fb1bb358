// Package sim wires the identifier store, event publisher, and the
// activity/leg/teleport/network engines into a single per-partition
// Worker, and runs a scenario's workers to completion. It is the
// simulation driver spec.md's dependency order names last.
package sim

import (
	"context"
	"time"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/broker"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/engine"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/events"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/logging"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/metrics"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/network"
)

// Worker owns one partition's network, garage, and engines, and
// executes the per-tick data flow spec.md §2 describes: activity
// wakeup/end, leg dispatch, teleport arrivals, network node/link
// movement, broker exchange, then applying what the broker delivered.
type Worker struct {
	partition int
	net       *network.Network
	garage    *agent.Garage
	publisher *events.Publisher
	broker    *broker.Broker

	activity *engine.ActivityEngine
	leg      *engine.LegEngine
	teleport *engine.TeleportationEngine
	network  *engine.NetworkEngine

	recorder metrics.Recorder
	log      logging.Logger
}

// NewWorker builds a worker for partition, over net, exchanging
// boundary traffic via transport with the given neighbor partitions.
// linkToPartition must cover every link in the whole (unpartitioned)
// scenario, not just this partition's own links, so the broker and
// teleportation engine can resolve hand-off destinations. internID
// resolves a string to its interned vehicle id, for the leg engine's
// synthesized "{agent_id}_{mode}" vehicle ids.
func NewWorker(
	partition int,
	net *network.Network,
	neighbors map[int]bool,
	linkToPartition map[uint64]int,
	transport broker.Transport,
	garage *agent.Garage,
	mainNetworkModes map[string]bool,
	internID func(string) uint64,
	recorder metrics.Recorder,
	log logging.Logger,
) *Worker {
	publisher := events.NewPublisher()
	brk := broker.NewBroker(partition, neighbors, linkToPartition, transport, log)
	activityEngine := engine.NewActivityEngine(publisher)

	partitionOf := func(linkID uint64) int { return linkToPartition[linkID] }
	teleportEngine := engine.NewTeleportationEngine(publisher, brk, partition, partitionOf)

	legEngine := engine.NewLegEngine(
		garage, publisher, net, teleportEngine,
		mainNetworkModes, internID, activityEngine.ReceiveAgent,
	)
	teleportEngine.SetArrivalHandler(legEngine.HandleTeleportArrival)

	networkEngine := engine.NewNetworkEngine(net, publisher, brk, legEngine.HandleNetworkArrival)

	return &Worker{
		partition: partition,
		net:       net,
		garage:    garage,
		publisher: publisher,
		broker:    brk,
		activity:  activityEngine,
		leg:       legEngine,
		teleport:  teleportEngine,
		network:   networkEngine,
		recorder:  recorder,
		log:       log.With("worker"),
	}
}

// Publisher exposes the worker's event publisher so callers can
// register sinks (binary event file, Prometheus, a test MemorySink)
// before Run starts.
func (w *Worker) Publisher() *events.Publisher { return w.publisher }

// AdmitAgent places ag onto its first activity at simulation start (or
// whenever it is loaded), scheduling its wakeup.
func (w *Worker) AdmitAgent(ag *agent.Agent, now uint32) {
	w.activity.ReceiveAgent(ag, now)
}

// Step executes one tick of the data flow spec.md §2 describes:
// activity wake/end and leg dispatch, teleport arrivals, network
// node/link movement, the broker exchange, and applying what was
// received. Arrivals from both the network and teleportation engines
// are delivered back to the activity engine synchronously, through
// the onArrival hooks wired in NewWorker.
func (w *Worker) Step(now uint32) {
	t0 := time.Now()
	ending := w.activity.DoStep(now, nil)
	for _, ag := range ending {
		w.leg.Depart(now, ag)
	}
	w.recorder.StepDuration(w.partition, metrics.PhaseActivity, time.Since(t0))

	t1 := time.Now()
	w.teleport.DoStep(now)
	w.recorder.StepDuration(w.partition, metrics.PhaseLeg, time.Since(t1))

	t2 := time.Now()
	w.network.Step(now)
	w.recorder.StepDuration(w.partition, metrics.PhaseNetwork, time.Since(t2))

	t3 := time.Now()
	for _, msg := range w.broker.SendRecv(now) {
		w.applyMessage(now, msg)
	}
	w.recorder.StepDuration(w.partition, metrics.PhaseBroker, time.Since(t3))

	w.recorder.TickCompleted(w.partition)
	w.recorder.InFlightVehicles(w.partition, w.garage.InFlightCount())
}

// applyMessage injects one neighbor's SyncMessage into this partition:
// network hand-offs are pushed onto the destination split-in link with
// the same timed traversal computation as any other entry (the
// split-in link carries the crossed link's own length/freespeed, so
// it, not the sender's split-out stub, is where that link's travel
// time is modeled), teleport hand-offs re-enter the teleportation
// engine's queue, and storage credits are applied to the matching
// split-out link.
func (w *Worker) applyMessage(now uint32, msg broker.SyncMessage) {
	for _, h := range msg.NetworkVehicles {
		l, ok := w.net.Link(h.LinkID)
		if !ok {
			w.log.Fatalf("partition %d: received vehicle for unknown link %d", w.partition, h.LinkID)
			continue
		}
		ql, ok := l.(network.QueueLink)
		if !ok {
			w.log.Fatalf("partition %d: link %d is not a queue link on the receiving side", w.partition, h.LinkID)
			continue
		}
		ql.PushVeh(h.Vehicle, now)
	}

	for _, h := range msg.TeleportVehicles {
		w.teleport.Receive(now, h.Vehicle, h.ArrivalTime)
	}

	for _, c := range msg.StorageCredits {
		l, ok := w.net.Link(c.LinkID)
		if !ok {
			continue
		}
		if so, ok := l.(*network.SplitOutLink); ok {
			so.ApplyRemoteCredit(c.Released)
		}
	}
}

// Run executes ticks start..end inclusive, checking ctx for
// cancellation at each tick boundary as spec.md §5 requires (no
// in-tick pre-emption).
func (w *Worker) Run(ctx context.Context, start, end uint32) error {
	for now := start; now <= end; now++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		w.Step(now)
	}
	return nil
}

// Close flushes every registered event sink and releases the
// partition's transport.
func (w *Worker) Close() error {
	if err := w.publisher.Finish(); err != nil {
		w.broker.Close()
		return err
	}
	return w.broker.Close()
}
