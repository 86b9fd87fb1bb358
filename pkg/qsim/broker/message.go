// Package broker implements the partitioned message exchange: each
// worker trades one SyncMessage per neighbor per tick, carrying
// boundary vehicles and storage-capacity credits, with deterministic
// (time, from_partition) ordering and a reorder buffer for messages
// that arrive ahead of their tick.
package broker

import "github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"

// StorageCredit reports that a split-in link released pce units of
// storage this tick, to be applied by the upstream partition that
// owns the matching split-out link.
type StorageCredit struct {
	LinkID   uint64
	Released float64
}

// NetworkHandoff is a vehicle entering the receiving partition via a
// network leg: LinkID is the (now local) link it is entering.
type NetworkHandoff struct {
	Vehicle *agent.Vehicle
	LinkID  uint64
}

// TeleportHandoff is a vehicle entering the receiving partition via a
// teleported leg that crossed partitions: ArrivalTime is the tick the
// teleportation engine should deliver it on.
type TeleportHandoff struct {
	Vehicle     *agent.Vehicle
	ArrivalTime uint32
}

// SyncMessage is one partition-to-partition envelope for a single
// tick: every vehicle handed off this tick, plus every storage credit
// a split-in link produced this tick. Messages are ordered by
// (Time, FromPartition).
type SyncMessage struct {
	Time            uint32
	FromPartition   int
	ToPartition     int
	NetworkVehicles []NetworkHandoff
	TeleportVehicles []TeleportHandoff
	StorageCredits  []StorageCredit
}
