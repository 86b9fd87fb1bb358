// Command qsim runs a parallel queue-based traffic simulation from a
// YAML config and a set of binary scenario files.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/broker"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/config"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/events"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/id"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/logging"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/metrics"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/scenario"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/sim"
)

type overrideFlags []string

func (o *overrideFlags) String() string { return fmt.Sprintf("%v", *o) }
func (o *overrideFlags) Set(v string) error {
	*o = append(*o, v)
	return nil
}
func (o *overrideFlags) Type() string { return "stringArray" }

func main() {
	log := logging.New()
	if err := run(log); err != nil {
		log.Errorf("qsim: %v", err)
		os.Exit(1)
	}
}

func run(log logging.Logger) error {
	var configPath string
	var overrides overrideFlags
	flag.StringVar(&configPath, "config", "", "path to the run's YAML config file")
	flag.Var(&overrides, "set", "override a config key, as key=value (repeatable)")
	flag.Parse()

	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(configPath, overrides, log)
	if err != nil {
		return err
	}

	if cfg.Output.Logging != "" {
		log.ToggleDebug(cfg.Output.Logging == "Debug")
	}

	recorder := metrics.NewRecorder(cfg.Output)
	if prom, ok := recorder.(*metrics.PrometheusRecorder); ok {
		serveMetrics(prom, log)
	}

	idStore := id.NewStore()
	sc, err := scenario.Load(cfg, idStore)
	if err != nil {
		return err
	}
	log.Infof("loaded scenario: %d nodes, %d links, %d agents", len(sc.Network.Nodes), len(sc.Network.Links), len(sc.Agents))

	if cfg.Routing.Mode == config.RoutingAdHoc {
		log.Warnf("routing.mode is AdHoc but no external routing adapter is configured; agents will follow their plans' precomputed routes")
	}

	garage := agent.NewGarage(sc.VehicleTypes)
	mainModes := make(map[string]bool, len(cfg.Simulation.MainModes))
	for _, m := range cfg.Simulation.MainModes {
		mainModes[m] = true
	}

	hub := broker.NewHub([]int{0})
	internID := func(s string) uint64 { return idStore.Intern("vehicle", s) }

	worker := sim.NewWorker(
		0, sc.Network,
		map[int]bool{}, sc.LinkToPartition,
		hub.Transport(0), garage, mainModes, internID,
		recorder, log,
	)

	if err := attachEventSink(worker, cfg); err != nil {
		return err
	}

	for _, ag := range sc.Agents {
		worker.AdmitAgent(ag, cfg.Simulation.StartTime)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchShutdown(ctx, cancel, log)

	runErr := sim.RunAll(ctx, []*sim.Worker{worker}, cfg.Simulation.StartTime, cfg.Simulation.EndTime)

	// worker.Close flushes every registered Finisher sink (including
	// the BinarySink attachEventSink may have registered) exactly
	// once, via the publisher's own dedup.
	if err := worker.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// attachEventSink wires the binary event writer named by
// cfg.Output.WriteEvents/OutputDir onto worker's publisher, if event
// writing is enabled. worker.Close flushes it at the end of the run.
func attachEventSink(worker *sim.Worker, cfg *config.Config) error {
	if cfg.Output.WriteEvents != config.WriteEventsProto || cfg.Output.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.Output.OutputDir, 0o755); err != nil {
		return fmt.Errorf("qsim: creating output dir %s: %w", cfg.Output.OutputDir, err)
	}
	path := cfg.Output.OutputDir + "/events.pb"
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("qsim: creating event file %s: %w", path, err)
	}
	worker.Publisher().OnAny(events.NewBinarySink(f))
	return nil
}

// serveMetrics exposes prom's registry on :2112/metrics. Failing to
// bind the listener is logged but not fatal: metrics are an
// observability aid, not a correctness requirement of a run.
func serveMetrics(prom *metrics.PrometheusRecorder, log logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prom.Registry(), promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(":2112", mux); err != nil {
			log.Warnf("qsim: metrics server: %v", err)
		}
	}()
}

// watchShutdown cancels ctx on SIGINT/SIGTERM, mirroring the
// shutdown-channel idiom the teacher's Unity.poll used to notice a
// requested shutdown between ticks rather than mid-tick.
func watchShutdown(ctx context.Context, cancel context.CancelFunc, log logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("qsim: received %s, stopping at the next tick boundary", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
}
