package metrics

import (
	"testing"
	"time"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/config"
)

func TestNewRecorderDefaultsToNop(t *testing.T) {
	r := NewRecorder(config.Output{Profiling: config.ProfilingNone})
	if _, ok := r.(NopRecorder); !ok {
		t.Fatalf("expected NopRecorder, got %T", r)
	}
	// Must not panic with no registry behind it.
	r.StepDuration(0, PhaseNetwork, time.Millisecond)
	r.TickCompleted(0)
	r.InFlightVehicles(0, 3)
}

func TestPrometheusRecorderTracksTicksCompleted(t *testing.T) {
	r := NewPrometheusRecorder()
	r.TickCompleted(2)
	r.TickCompleted(2)

	mf, err := r.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	var got float64
	for _, fam := range mf {
		if fam.GetName() != "qsim_ticks_completed_total" {
			continue
		}
		for _, m := range fam.Metric {
			for _, l := range m.Label {
				if l.GetName() == "partition" && l.GetValue() == "2" {
					got = m.Counter.GetValue()
				}
			}
		}
	}
	if got != 2 {
		t.Fatalf("expected ticks_completed=2 for partition 2, got %v", got)
	}
}

func TestItoaHandlesZeroAndMultiDigit(t *testing.T) {
	cases := map[int]string{0: "0", 7: "7", 42: "42", 100: "100"}
	for in, want := range cases {
		if got := itoa(in); got != want {
			t.Errorf("itoa(%d) = %q, want %q", in, got, want)
		}
	}
}
