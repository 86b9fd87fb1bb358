package scenario

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
)

// Population record field numbers. A population file is a flat stream
// of records, one per person/activity/leg, tagged by kind the same
// way the network file's node/link records are — see network.go.
const (
	popFieldKind         = 1 // varint
	popFieldPersonID     = 2 // varint
	popFieldLink         = 3 // varint
	popFieldActType      = 4 // bytes (string)
	popFieldHasEndTime   = 5 // varint (bool)
	popFieldEndTime      = 6 // varint
	popFieldHasMaxDur    = 7 // varint (bool)
	popFieldMaxDur       = 8 // varint
	popFieldMode         = 9  // bytes (string)
	popFieldRouteKind    = 10 // varint
	popFieldStartLink    = 11 // varint
	popFieldEndLink      = 12 // varint
	popFieldHasTravelTime = 13 // varint (bool)
	popFieldTravelTime   = 14 // varint
	popFieldHasDistance  = 15 // varint (bool)
	popFieldDistance     = 16 // fixed64 (double)
	popFieldHasVehicleID = 17 // varint (bool)
	popFieldVehicleID    = 18 // varint
	popFieldTransitLine  = 19 // bytes (string)
	popFieldTransitRoute = 20 // bytes (string)
	popFieldRouteLink    = 21 // repeated varint, route.Links in order
)

const (
	popKindPersonStart = 1
	popKindActivity    = 2
	popKindLeg         = 3
	popKindPersonEnd   = 4
)

func encodePersonStart(personID uint64) []byte {
	var b []byte
	b = appendUint(b, popFieldKind, popKindPersonStart)
	b = appendUint(b, popFieldPersonID, personID)
	return b
}

func encodePersonEnd() []byte {
	var b []byte
	b = appendUint(b, popFieldKind, popKindPersonEnd)
	return b
}

func encodeActivity(a agent.Activity) []byte {
	var b []byte
	b = appendUint(b, popFieldKind, popKindActivity)
	b = appendUint(b, popFieldLink, a.Link)
	b = appendString(b, popFieldActType, a.ActType)
	if a.EndTime != nil {
		b = appendUint(b, popFieldHasEndTime, 1)
		b = appendUint(b, popFieldEndTime, uint64(*a.EndTime))
	}
	if a.MaxDur != nil {
		b = appendUint(b, popFieldHasMaxDur, 1)
		b = appendUint(b, popFieldMaxDur, uint64(*a.MaxDur))
	}
	return b
}

func encodeLeg(l agent.Leg) []byte {
	r := l.Route
	var b []byte
	b = appendUint(b, popFieldKind, popKindLeg)
	b = appendString(b, popFieldMode, l.Mode)
	b = appendUint(b, popFieldRouteKind, uint64(r.Kind))
	b = appendUint(b, popFieldStartLink, r.StartLink)
	b = appendUint(b, popFieldEndLink, r.EndLink)
	if r.TravelTime != nil {
		b = appendUint(b, popFieldHasTravelTime, 1)
		b = appendUint(b, popFieldTravelTime, uint64(*r.TravelTime))
	}
	if r.Distance != nil {
		b = appendUint(b, popFieldHasDistance, 1)
		b = appendDouble(b, popFieldDistance, *r.Distance)
	}
	if r.VehicleID != nil {
		b = appendUint(b, popFieldHasVehicleID, 1)
		b = appendUint(b, popFieldVehicleID, *r.VehicleID)
	}
	if r.TransitLine != "" {
		b = appendString(b, popFieldTransitLine, r.TransitLine)
	}
	if r.TransitRoute != "" {
		b = appendString(b, popFieldTransitRoute, r.TransitRoute)
	}
	for _, link := range r.Links {
		b = appendUint(b, popFieldRouteLink, link)
	}
	return b
}

// rawPopRecord accumulates every field a population record might
// carry; toActivity/toLeg assemble the concrete value once the kind
// (and, for booleans, the has-flags) are known.
type rawPopRecord struct {
	kind                                         uint64
	personID, link                               uint64
	actType, mode, transitLine, transitRoute     string
	hasEndTime, hasMaxDur                        bool
	endTime, maxDur                              uint32
	routeKind                                    uint64
	startLink, endLink                           uint64
	hasTravelTime                                bool
	travelTime                                   uint32
	hasDistance                                  bool
	distance                                     float64
	hasVehicleID                                 bool
	vehicleID                                    uint64
	routeLinks                                   []uint64
}

func decodePopRecord(b []byte) (*rawPopRecord, error) {
	var r rawPopRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case popFieldKind:
				r.kind = v
			case popFieldPersonID:
				r.personID = v
			case popFieldLink:
				r.link = v
			case popFieldHasEndTime:
				r.hasEndTime = v != 0
			case popFieldEndTime:
				r.endTime = uint32(v)
			case popFieldHasMaxDur:
				r.hasMaxDur = v != 0
			case popFieldMaxDur:
				r.maxDur = uint32(v)
			case popFieldRouteKind:
				r.routeKind = v
			case popFieldStartLink:
				r.startLink = v
			case popFieldEndLink:
				r.endLink = v
			case popFieldHasTravelTime:
				r.hasTravelTime = v != 0
			case popFieldTravelTime:
				r.travelTime = uint32(v)
			case popFieldHasDistance:
				r.hasDistance = v != 0
			case popFieldHasVehicleID:
				r.hasVehicleID = v != 0
			case popFieldVehicleID:
				r.vehicleID = v
			case popFieldRouteLink:
				r.routeLinks = append(r.routeLinks, v)
			}
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			if num == popFieldDistance {
				r.distance = math.Float64frombits(v)
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case popFieldActType:
				r.actType = string(v)
			case popFieldMode:
				r.mode = string(v)
			case popFieldTransitLine:
				r.transitLine = string(v)
			case popFieldTransitRoute:
				r.transitRoute = string(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return &r, nil
}

func (r *rawPopRecord) toActivity() agent.Activity {
	a := agent.Activity{Link: r.link, ActType: r.actType}
	if r.hasEndTime {
		t := r.endTime
		a.EndTime = &t
	}
	if r.hasMaxDur {
		d := r.maxDur
		a.MaxDur = &d
	}
	return a
}

func (r *rawPopRecord) toLeg() agent.Leg {
	route := agent.Route{
		Kind:         agent.RouteKind(r.routeKind),
		StartLink:    r.startLink,
		EndLink:      r.endLink,
		Links:        r.routeLinks,
		TransitLine:  r.transitLine,
		TransitRoute: r.transitRoute,
	}
	if r.hasTravelTime {
		t := r.travelTime
		route.TravelTime = &t
	}
	if r.hasDistance {
		d := r.distance
		route.Distance = &d
	}
	if r.hasVehicleID {
		v := r.vehicleID
		route.VehicleID = &v
	}
	return agent.Leg{Mode: r.mode, Route: route}
}

// ReadPopulation decodes a population file's person-start/activity/
// leg/person-end record stream into the agents it describes, in file
// order. A malformed stream (a PersonEnd outside an open person, or
// EOF before one) is an error: spec.md treats a population file as a
// single atomic scenario input, not a partial one to recover from.
func ReadPopulation(r io.Reader) ([]*agent.Agent, error) {
	br := bufio.NewReader(r)

	var agents []*agent.Agent
	var cur *agent.Agent
	open := false

	for {
		payload, err := readRecord(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scenario: reading population record: %w", err)
		}
		rec, err := decodePopRecord(payload)
		if err != nil {
			return nil, err
		}
		switch rec.kind {
		case popKindPersonStart:
			if open {
				return nil, fmt.Errorf("scenario: population record: person %d started before person %d ended", rec.personID, cur.ID)
			}
			cur = &agent.Agent{ID: rec.personID}
			open = true
		case popKindActivity:
			if !open {
				return nil, fmt.Errorf("scenario: population record: activity outside any person")
			}
			cur.Plan.Activities = append(cur.Plan.Activities, rec.toActivity())
		case popKindLeg:
			if !open {
				return nil, fmt.Errorf("scenario: population record: leg outside any person")
			}
			cur.Plan.Legs = append(cur.Plan.Legs, rec.toLeg())
		case popKindPersonEnd:
			if !open {
				return nil, fmt.Errorf("scenario: population record: unmatched person end")
			}
			agents = append(agents, cur)
			cur = nil
			open = false
		default:
			return nil, fmt.Errorf("scenario: unknown population record kind %d", rec.kind)
		}
	}
	if open {
		return nil, fmt.Errorf("scenario: population record: person %d never ended", cur.ID)
	}
	return agents, nil
}

// WritePopulation encodes agents as a population file ReadPopulation
// can parse back, used by tests and by a scenario-authoring tool.
func WritePopulation(w io.Writer, agents []*agent.Agent) error {
	bw := bufio.NewWriter(w)
	for _, ag := range agents {
		if err := writeRecord(bw, encodePersonStart(ag.ID)); err != nil {
			return err
		}
		for i, act := range ag.Plan.Activities {
			if err := writeRecord(bw, encodeActivity(act)); err != nil {
				return err
			}
			if i < len(ag.Plan.Legs) {
				if err := writeRecord(bw, encodeLeg(ag.Plan.Legs[i])); err != nil {
					return err
				}
			}
		}
		if err := writeRecord(bw, encodePersonEnd()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
