// Package config loads the simulation's YAML configuration document
// and layers command-line key=value overrides on top of it.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/logging"
)

// ProtoFiles names the four binary scenario files the core reads.
type ProtoFiles struct {
	Network    string `mapstructure:"network"`
	Population string `mapstructure:"population"`
	Vehicles   string `mapstructure:"vehicles"`
	IDs        string `mapstructure:"ids"`
}

// PartitionMethod selects how the network is split across workers.
type PartitionMethod string

const (
	PartitionNone  PartitionMethod = "None"
	PartitionMetis PartitionMethod = "Metis"
)

// Partitioning controls how many workers run and how the network is
// split between them.
type Partitioning struct {
	NumParts     uint32            `mapstructure:"num_parts"`
	Method       PartitionMethod   `mapstructure:"method"`
	MetisOptions map[string]string `mapstructure:"metis_options"`
}

// Simulation carries the tick-loop constants every engine reads.
type Simulation struct {
	StartTime         uint32   `mapstructure:"start_time"`
	EndTime           uint32   `mapstructure:"end_time"`
	SampleSize        float64  `mapstructure:"sample_size"`
	StuckThreshold    uint32   `mapstructure:"stuck_threshold"`
	MainModes         []string `mapstructure:"main_modes"`
	EffectiveCellSize float64  `mapstructure:"effective_cell_size"`
}

// ProfilingKind selects the metrics backend.
type ProfilingKind string

const (
	ProfilingNone       ProfilingKind = "None"
	ProfilingPrometheus ProfilingKind = "Prometheus"
)

// WriteEventsKind selects whether per-tick events are written to disk.
type WriteEventsKind string

const (
	WriteEventsNone  WriteEventsKind = "None"
	WriteEventsProto WriteEventsKind = "Proto"
)

// Output controls where a run's artifacts land.
type Output struct {
	OutputDir   string          `mapstructure:"output_dir"`
	Profiling   ProfilingKind   `mapstructure:"profiling"`
	Logging     string          `mapstructure:"logging"`
	WriteEvents WriteEventsKind `mapstructure:"write_events"`
}

// RoutingMode selects whether agents follow their plan's pre-computed
// route or request one ad-hoc from the external routing adapter.
type RoutingMode string

const (
	RoutingUsePlans RoutingMode = "UsePlans"
	RoutingAdHoc    RoutingMode = "AdHoc"
)

// Routing controls the routing mode.
type Routing struct {
	Mode RoutingMode `mapstructure:"mode"`
}

// ComputationalSetup controls cross-cutting run parameters unrelated
// to the simulated scenario itself.
type ComputationalSetup struct {
	GlobalSync           bool   `mapstructure:"global_sync"`
	AdapterWorkerThreads uint32 `mapstructure:"adapter_worker_threads"`
	RetryTimeSeconds     uint64 `mapstructure:"retry_time_seconds"`
}

// Config is the root of the YAML configuration document.
type Config struct {
	ProtoFiles         ProtoFiles         `mapstructure:"protofiles"`
	Partitioning       Partitioning       `mapstructure:"partitioning"`
	Simulation         Simulation         `mapstructure:"simulation"`
	Output             Output             `mapstructure:"output"`
	Routing            Routing            `mapstructure:"routing"`
	ComputationalSetup ComputationalSetup `mapstructure:"computational_setup"`
}

// knownKeys lists every recognized override key path, used to warn on
// typos without rejecting the run.
var knownKeys = map[string]bool{
	"protofiles.network": true, "protofiles.population": true,
	"protofiles.vehicles": true, "protofiles.ids": true,
	"partitioning.num_parts": true, "partitioning.method": true,
	"simulation.start_time": true, "simulation.end_time": true,
	"simulation.sample_size": true, "simulation.stuck_threshold": true,
	"simulation.main_modes": true, "simulation.effective_cell_size": true,
	"output.output_dir": true, "output.profiling": true,
	"output.logging": true, "output.write_events": true,
	"routing.mode":                           true,
	"computational_setup.global_sync":           true,
	"computational_setup.adapter_worker_threads": true,
	"computational_setup.retry_time_seconds":     true,
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("simulation.effective_cell_size", 7.5)
	vp.SetDefault("simulation.sample_size", 1.0)
	vp.SetDefault("simulation.main_modes", []string{"car"})
	vp.SetDefault("partitioning.num_parts", 1)
	vp.SetDefault("partitioning.method", string(PartitionNone))
	vp.SetDefault("output.profiling", string(ProfilingNone))
	vp.SetDefault("output.write_events", string(WriteEventsNone))
	vp.SetDefault("routing.mode", string(RoutingUsePlans))
	vp.SetDefault("computational_setup.retry_time_seconds", 30)
}

// Load reads the YAML document at path, applies "key=value" overrides
// in order (as produced by repeated --set flags), and validates the
// result.
func Load(path string, overrides []string, log logging.Logger) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	setDefaults(vp)

	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := ApplyOverrides(vp, overrides, log); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := vp.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides sets every "key=value" override on vp, warning (but
// not failing) on a key outside the recognized configuration surface.
func ApplyOverrides(vp *viper.Viper, overrides []string, log logging.Logger) error {
	for _, kv := range overrides {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("config: malformed override %q, want key=value", kv)
		}
		if !knownKeys[key] && log != nil {
			log.Warnf("config: unrecognized override key %q, ignoring", key)
		}
		vp.Set(key, value)
	}
	return nil
}

// Validate enforces the structural invariants the engines assume.
func (c *Config) Validate() error {
	if c.Simulation.SampleSize <= 0 || c.Simulation.SampleSize > 1 {
		return fmt.Errorf("config: simulation.sample_size must be in (0,1], got %v", c.Simulation.SampleSize)
	}
	if c.Partitioning.NumParts < 1 {
		return fmt.Errorf("config: partitioning.num_parts must be >= 1, got %d", c.Partitioning.NumParts)
	}
	if c.Simulation.StartTime > c.Simulation.EndTime {
		return fmt.Errorf("config: simulation.start_time (%d) must be <= simulation.end_time (%d)", c.Simulation.StartTime, c.Simulation.EndTime)
	}
	return nil
}
