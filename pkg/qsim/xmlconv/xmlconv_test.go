package xmlconv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/events"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/id"
)

func TestWriteProducesWellFormedEventsDocument(t *testing.T) {
	store := id.NewStore()
	person := store.Intern("person", "p1")
	link := store.Intern("link", "L1")

	steps := []events.TimeStep{
		{Time: 0, Events: []events.Event{events.NewActEnd(0, person, link, "home")}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, steps, NewResolver(store)); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, `type="actend"`) || !strings.Contains(out, `person="p1"`) || !strings.Contains(out, `link="L1"`) {
		t.Fatalf("missing expected attributes in output:\n%s", out)
	}
}

func TestReadWriteRoundTripPreservesFields(t *testing.T) {
	store := id.NewStore()
	person := store.Intern("person", "p7")
	link := store.Intern("link", "L9")
	vehicle := store.Intern("vehicle", "v1")

	original := []events.Event{
		events.NewActEnd(0, person, link, "home"),
		events.NewDeparture(0, person, link, "car"),
		events.NewVehicleEntersTraffic(0, person, vehicle, link, "car", 1.0),
		events.NewLinkLeave(10, link, vehicle),
		events.NewTravelledWithPt(12, person, 250.5, "pt", "lineA", "routeB"),
	}
	steps := []events.TimeStep{{Time: 0, Events: original}}

	var buf bytes.Buffer
	if err := Write(&buf, steps, NewResolver(store)); err != nil {
		t.Fatal(err)
	}

	parsed, err := Read(&buf, store)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != len(original) {
		t.Fatalf("expected %d events back, got %d", len(original), len(parsed))
	}
	for i, e := range parsed {
		if e.Kind() != original[i].Kind() {
			t.Errorf("event %d: kind mismatch: got %v, want %v", i, e.Kind(), original[i].Kind())
		}
	}

	pt, ok := parsed[4].(events.TravelledWithPt)
	if !ok {
		t.Fatalf("expected event 4 to be TravelledWithPt, got %T", parsed[4])
	}
	if pt.Line != "lineA" || pt.Route != "routeB" || pt.Distance != 250.5 {
		t.Fatalf("unexpected TravelledWithPt fields: %+v", pt)
	}
}

func TestResolveFallsBackToNumericStringForUnknownID(t *testing.T) {
	store := id.NewStore()
	r := NewResolver(store)
	if got := r.resolve("person", 42); got != "42" {
		t.Fatalf("expected fallback numeric string, got %q", got)
	}
}
