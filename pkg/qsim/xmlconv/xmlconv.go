// Package xmlconv renders a BinarySink's length-delimited event
// stream as MATSim-compatible events XML, and parses it back,
// completing the binary<->XML round-trip property spec.md §8
// requires.
package xmlconv

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/events"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/id"
)

// Resolver maps the interned ids carried on events back to the
// original scenario-file strings via the identifier store that
// produced them.
type Resolver struct {
	store *id.Store
}

// NewResolver builds a resolver reading from store.
func NewResolver(store *id.Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) resolve(typ string, internal uint64) string {
	if s, ok := r.store.External(typ, internal); ok {
		return s
	}
	return strconv.FormatUint(internal, 10)
}

type attr struct {
	name  string
	value string
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// attrsFor builds the MATSim-compatible attribute list for e, in the
// order MATSim's own writer emits them.
func (r *Resolver) attrsFor(e events.Event) []attr {
	base := []attr{{"time", formatFloat(float64(e.Time()))}, {"type", e.Kind().String()}}

	switch ev := e.(type) {
	case events.ActStart:
		return append(base, attr{"person", r.resolve("person", ev.Person)}, attr{"link", r.resolve("link", ev.Link)}, attr{"actType", ev.ActType})
	case events.ActEnd:
		return append(base, attr{"person", r.resolve("person", ev.Person)}, attr{"link", r.resolve("link", ev.Link)}, attr{"actType", ev.ActType})
	case events.Departure:
		return append(base, attr{"person", r.resolve("person", ev.Person)}, attr{"link", r.resolve("link", ev.Link)}, attr{"legMode", ev.LegMode})
	case events.Arrival:
		return append(base, attr{"person", r.resolve("person", ev.Person)}, attr{"link", r.resolve("link", ev.Link)}, attr{"legMode", ev.LegMode})
	case events.LinkEnter:
		return append(base, attr{"link", r.resolve("link", ev.Link)}, attr{"vehicle", r.resolve("vehicle", ev.Vehicle)})
	case events.LinkLeave:
		return append(base, attr{"link", r.resolve("link", ev.Link)}, attr{"vehicle", r.resolve("vehicle", ev.Vehicle)})
	case events.VehicleForcedAhead:
		return append(base, attr{"link", r.resolve("link", ev.Link)}, attr{"vehicle", r.resolve("vehicle", ev.Vehicle)})
	case events.PersonEntersVehicle:
		return append(base, attr{"person", r.resolve("person", ev.Person)}, attr{"vehicle", r.resolve("vehicle", ev.Vehicle)})
	case events.PersonLeavesVehicle:
		return append(base, attr{"person", r.resolve("person", ev.Person)}, attr{"vehicle", r.resolve("vehicle", ev.Vehicle)})
	case events.VehicleEntersTraffic:
		return append(base,
			attr{"person", r.resolve("person", ev.Person)},
			attr{"link", r.resolve("link", ev.Link)},
			attr{"vehicle", r.resolve("vehicle", ev.Vehicle)},
			attr{"networkMode", ev.Mode},
			attr{"relativePosition", formatFloat(ev.RelativePosition)},
		)
	case events.VehicleLeavesTraffic:
		return append(base,
			attr{"person", r.resolve("person", ev.Person)},
			attr{"link", r.resolve("link", ev.Link)},
			attr{"vehicle", r.resolve("vehicle", ev.Vehicle)},
			attr{"networkMode", ev.Mode},
			attr{"relativePosition", formatFloat(ev.RelativePosition)},
		)
	case events.TravelledWithPt:
		return append(base,
			attr{"person", r.resolve("person", ev.Person)},
			attr{"distance", formatFloat(ev.Distance)},
			attr{"mode", ev.Mode},
			attr{"transitLineId", ev.Line},
			attr{"transitRouteId", ev.Route},
		)
	case events.Travelled:
		return append(base,
			attr{"person", r.resolve("person", ev.Person)},
			attr{"distance", formatFloat(ev.Distance)},
			attr{"mode", ev.Mode},
		)
	default:
		return base
	}
}

// Write renders steps as a MATSim-compatible events XML document.
func Write(w io.Writer, steps []events.TimeStep, resolver *Resolver) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(xml.Header); err != nil {
		return err
	}
	if _, err := bw.WriteString("<events version=\"1.0\">\n"); err != nil {
		return err
	}
	for _, step := range steps {
		for _, e := range step.Events {
			if err := writeEvent(bw, resolver.attrsFor(e)); err != nil {
				return err
			}
		}
	}
	if _, err := bw.WriteString("</events>\n"); err != nil {
		return err
	}
	return bw.Flush()
}

func writeEvent(w *bufio.Writer, attrs []attr) error {
	if _, err := w.WriteString("\t<event"); err != nil {
		return err
	}
	for _, a := range attrs {
		if _, err := fmt.Fprintf(w, " %s=\"", a.name); err != nil {
			return err
		}
		if err := xml.EscapeText(w, []byte(a.value)); err != nil {
			return err
		}
		if _, err := w.WriteString("\""); err != nil {
			return err
		}
	}
	_, err := w.WriteString(" />\n")
	return err
}

// Read parses a MATSim-compatible events XML document back into
// Events, interning every person/link/vehicle string it encounters
// into store.
func Read(r io.Reader, store *id.Store) ([]events.Event, error) {
	dec := xml.NewDecoder(r)
	var out []events.Event
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmlconv: decode token: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "event" {
			continue
		}
		attrs := make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			attrs[a.Name.Local] = a.Value
		}
		e, err := fromAttrs(attrs, store)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func fromAttrs(a map[string]string, store *id.Store) (events.Event, error) {
	t, err := strconv.ParseFloat(a["time"], 64)
	if err != nil {
		return nil, fmt.Errorf("xmlconv: bad time %q: %w", a["time"], err)
	}
	time := uint32(t)

	person := func() uint64 { return store.Intern("person", a["person"]) }
	link := func() uint64 { return store.Intern("link", a["link"]) }
	vehicle := func() uint64 { return store.Intern("vehicle", a["vehicle"]) }
	floatAttr := func(name string) float64 {
		v, _ := strconv.ParseFloat(a[name], 64)
		return v
	}

	switch a["type"] {
	case "actstart":
		return events.NewActStart(time, person(), link(), a["actType"]), nil
	case "actend":
		return events.NewActEnd(time, person(), link(), a["actType"]), nil
	case "departure":
		return events.NewDeparture(time, person(), link(), a["legMode"]), nil
	case "arrival":
		return events.NewArrival(time, person(), link(), a["legMode"]), nil
	case "entered link":
		return events.NewLinkEnter(time, link(), vehicle()), nil
	case "left link":
		return events.NewLinkLeave(time, link(), vehicle()), nil
	case "vehicle forced ahead":
		return events.NewVehicleForcedAhead(time, link(), vehicle()), nil
	case "PersonEntersVehicle":
		return events.NewPersonEntersVehicle(time, person(), vehicle()), nil
	case "PersonLeavesVehicle":
		return events.NewPersonLeavesVehicle(time, person(), vehicle()), nil
	case "vehicle enters traffic":
		return events.NewVehicleEntersTraffic(time, person(), vehicle(), link(), a["networkMode"], floatAttr("relativePosition")), nil
	case "vehicle leaves traffic":
		return events.NewVehicleLeavesTraffic(time, person(), vehicle(), link(), a["networkMode"], floatAttr("relativePosition")), nil
	case "travelled":
		if line, ok := a["transitLineId"]; ok {
			return events.NewTravelledWithPt(time, person(), floatAttr("distance"), a["mode"], line, a["transitRouteId"]), nil
		}
		return events.NewTravelled(time, person(), floatAttr("distance"), a["mode"]), nil
	default:
		return nil, fmt.Errorf("xmlconv: unknown event type %q", a["type"])
	}
}
