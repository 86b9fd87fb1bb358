package scenario

import (
	"fmt"
	"os"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/config"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/id"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/network"
)

// Scenario is everything a run's workers need, already assembled for
// a single partition: config.PartitionNone is the only partitioning
// method this package implements (see Load).
type Scenario struct {
	Network      *network.Network
	Agents       []*agent.Agent
	VehicleTypes map[uint64]agent.VehicleType

	// LinkToPartition maps every link id to its owning partition
	// (always 0, since only a single partition is ever built here) for
	// the broker/teleportation engine's destination lookups.
	LinkToPartition map[uint64]int
}

// Load reads the four proto files cfg.ProtoFiles names and assembles
// a single-partition Scenario. It requires cfg.Partitioning.Method to
// be config.PartitionNone: splitting a network across multiple
// partitions requires a graph partitioner (METIS in the original
// system) this repository does not vendor a Go binding for, so
// config.PartitionMetis is an explicit, immediate error here rather
// than a half-implemented partitioning path. idStore, if non-nil, is
// populated from cfg.ProtoFiles.IDs so external ids (for the XML event
// converter and any ad-hoc vehicle-id synthesis) resolve identically
// to how the scenario was originally interned.
func Load(cfg *config.Config, idStore *id.Store) (*Scenario, error) {
	if cfg.Partitioning.Method != config.PartitionNone {
		return nil, fmt.Errorf("scenario: partitioning method %q is not implemented; only %q is supported", cfg.Partitioning.Method, config.PartitionNone)
	}

	net, err := readNetworkFile(cfg)
	if err != nil {
		return nil, err
	}

	agents, err := readPopulationFile(cfg)
	if err != nil {
		return nil, err
	}

	vehicleTypes, err := readVehiclesFile(cfg)
	if err != nil {
		return nil, err
	}

	if idStore != nil && cfg.ProtoFiles.IDs != "" {
		f, err := os.Open(cfg.ProtoFiles.IDs)
		if err != nil {
			return nil, fmt.Errorf("scenario: opening id store %s: %w", cfg.ProtoFiles.IDs, err)
		}
		defer f.Close()
		if err := id.Load(f, idStore); err != nil {
			return nil, fmt.Errorf("scenario: loading id store %s: %w", cfg.ProtoFiles.IDs, err)
		}
	}

	linkToPartition := make(map[uint64]int, len(net.Links))
	for linkID := range net.Links {
		linkToPartition[linkID] = 0
	}

	return &Scenario{
		Network:         net,
		Agents:          agents,
		VehicleTypes:    vehicleTypes,
		LinkToPartition: linkToPartition,
	}, nil
}

func readNetworkFile(cfg *config.Config) (*network.Network, error) {
	f, err := os.Open(cfg.ProtoFiles.Network)
	if err != nil {
		return nil, fmt.Errorf("scenario: opening network file %s: %w", cfg.ProtoFiles.Network, err)
	}
	defer f.Close()
	net, err := ReadNetwork(f, cfg.Simulation.SampleSize, cfg.Simulation.EffectiveCellSize, cfg.Simulation.StuckThreshold)
	if err != nil {
		return nil, fmt.Errorf("scenario: parsing network file %s: %w", cfg.ProtoFiles.Network, err)
	}
	return net, nil
}

func readPopulationFile(cfg *config.Config) ([]*agent.Agent, error) {
	f, err := os.Open(cfg.ProtoFiles.Population)
	if err != nil {
		return nil, fmt.Errorf("scenario: opening population file %s: %w", cfg.ProtoFiles.Population, err)
	}
	defer f.Close()
	agents, err := ReadPopulation(f)
	if err != nil {
		return nil, fmt.Errorf("scenario: parsing population file %s: %w", cfg.ProtoFiles.Population, err)
	}
	return agents, nil
}

func readVehiclesFile(cfg *config.Config) (map[uint64]agent.VehicleType, error) {
	if cfg.ProtoFiles.Vehicles == "" {
		return map[uint64]agent.VehicleType{}, nil
	}
	f, err := os.Open(cfg.ProtoFiles.Vehicles)
	if err != nil {
		return nil, fmt.Errorf("scenario: opening vehicles file %s: %w", cfg.ProtoFiles.Vehicles, err)
	}
	defer f.Close()
	types, err := ReadVehicleTypes(f)
	if err != nil {
		return nil, fmt.Errorf("scenario: parsing vehicles file %s: %w", cfg.ProtoFiles.Vehicles, err)
	}
	return types, nil
}
