package events

import (
	"bytes"
	"testing"
)

func TestPublisherDispatchesByKindAndCatchAll(t *testing.T) {
	p := NewPublisher()
	kindOnly := NewMemorySink()
	catchAll := NewMemorySink()
	p.On(KindLinkEnter, kindOnly)
	p.OnAny(catchAll)

	p.Publish(NewLinkEnter(5, 1, 2))
	p.Publish(NewActStart(6, 1, 2, "home"))

	if got := len(kindOnly.Events()); got != 1 {
		t.Fatalf("kind-specific sink: got %d events, want 1", got)
	}
	if got := len(catchAll.Events()); got != 2 {
		t.Fatalf("catch-all sink: got %d events, want 2", got)
	}
}

func TestPublisherFinishCallsEverySinkOnce(t *testing.T) {
	p := NewPublisher()
	var buf bytes.Buffer
	sink := NewBinarySink(&buf)
	p.On(KindDeparture, sink)
	p.OnAny(sink) // registered twice: Publish delivers once per registration, Finish flushes once

	p.Publish(NewDeparture(1, 10, 20, "car"))
	if err := p.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	steps, err := ReadTimeSteps(&buf)
	if err != nil {
		t.Fatalf("ReadTimeSteps: %v", err)
	}
	if len(steps) != 1 || len(steps[0].Events) != 2 {
		t.Fatalf("expected one time step holding the event once per registration, got %+v", steps)
	}
}

func TestEventEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Event{
		NewActStart(1, 1, 2, "home"),
		NewActEnd(2, 1, 2, "work"),
		NewDeparture(3, 1, 2, "car"),
		NewArrival(4, 1, 2, "car"),
		NewLinkEnter(5, 10, 20),
		NewLinkLeave(6, 10, 20),
		NewPersonEntersVehicle(7, 1, 99),
		NewPersonLeavesVehicle(8, 1, 99),
		NewVehicleEntersTraffic(9, 1, 99, 10, "car", 0.0),
		NewVehicleLeavesTraffic(10, 1, 99, 10, "car", 1.0),
		NewTravelled(11, 1, 123.45, "car"),
		NewTravelledWithPt(12, 1, 543.21, "pt", "line-A", "route-7"),
	}

	for _, want := range cases {
		encoded := EncodeEvent(want)
		got, err := DecodeEvent(encoded)
		if err != nil {
			t.Fatalf("DecodeEvent(%T): %v", want, err)
		}
		if got.Kind() != want.Kind() || got.Time() != want.Time() {
			t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
		}
	}
}

func TestBinarySinkGroupsEventsByTick(t *testing.T) {
	var buf bytes.Buffer
	sink := NewBinarySink(&buf)

	sink.HandleEvent(NewLinkEnter(1, 10, 20))
	sink.HandleEvent(NewLinkLeave(1, 11, 20))
	sink.HandleEvent(NewLinkEnter(2, 12, 20))
	if err := sink.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	steps, err := ReadTimeSteps(&buf)
	if err != nil {
		t.Fatalf("ReadTimeSteps: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("got %d time steps, want 2", len(steps))
	}
	if steps[0].Time != 1 || len(steps[0].Events) != 2 {
		t.Fatalf("first time step: got %+v", steps[0])
	}
	if steps[1].Time != 2 || len(steps[1].Events) != 1 {
		t.Fatalf("second time step: got %+v", steps[1])
	}
}

func TestMemorySinkOrderPreserved(t *testing.T) {
	sink := NewMemorySink()
	sink.HandleEvent(NewArrival(1, 1, 2, "car"))
	sink.HandleEvent(NewDeparture(2, 1, 2, "car"))

	evs := sink.Events()
	if len(evs) != 2 || evs[0].Kind() != KindArrival || evs[1].Kind() != KindDeparture {
		t.Fatalf("unexpected event order: %+v", evs)
	}
}
