package events

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire field numbers shared by the Event and TimeStep framing. There
// is no .proto source for this format — the shape is simple enough
// that hand-written protowire varint/length-delimited framing is more
// direct than generating and vendoring stubs for a single message
// pair. DecodeEvent and DecodeTimeStep read the same numbers back.
const (
	fieldEventKind    = 1 // varint
	fieldEventTime    = 2 // varint
	fieldEventPerson  = 3 // varint
	fieldEventLink    = 4 // varint
	fieldEventActType = 5 // bytes (string)
	fieldEventLegMode = 6 // bytes (string)
	fieldEventVehicle = 7 // varint
	fieldEventMode    = 8 // bytes (string)
	fieldEventRelPos  = 9 // fixed64 (double)
	fieldEventDist    = 10 // fixed64 (double)
	fieldEventLine    = 11 // bytes (string)
	fieldEventRoute   = 12 // bytes (string)

	fieldStepTime = 1 // varint
	fieldStepData = 2 // repeated bytes (embedded Event)
)

// EncodeEvent renders e as a single protowire-framed message. The
// encoding is self-describing: DecodeEvent reconstructs the concrete
// Event variant from the Kind field alone.
func EncodeEvent(e Event) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldEventKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Kind()))
	b = protowire.AppendTag(b, fieldEventTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Time()))

	switch ev := e.(type) {
	case ActStart:
		b = appendUint(b, fieldEventPerson, ev.Person)
		b = appendUint(b, fieldEventLink, ev.Link)
		b = appendString(b, fieldEventActType, ev.ActType)
	case ActEnd:
		b = appendUint(b, fieldEventPerson, ev.Person)
		b = appendUint(b, fieldEventLink, ev.Link)
		b = appendString(b, fieldEventActType, ev.ActType)
	case Departure:
		b = appendUint(b, fieldEventPerson, ev.Person)
		b = appendUint(b, fieldEventLink, ev.Link)
		b = appendString(b, fieldEventLegMode, ev.LegMode)
	case Arrival:
		b = appendUint(b, fieldEventPerson, ev.Person)
		b = appendUint(b, fieldEventLink, ev.Link)
		b = appendString(b, fieldEventLegMode, ev.LegMode)
	case LinkEnter:
		b = appendUint(b, fieldEventLink, ev.Link)
		b = appendUint(b, fieldEventVehicle, ev.Vehicle)
	case LinkLeave:
		b = appendUint(b, fieldEventLink, ev.Link)
		b = appendUint(b, fieldEventVehicle, ev.Vehicle)
	case VehicleForcedAhead:
		b = appendUint(b, fieldEventLink, ev.Link)
		b = appendUint(b, fieldEventVehicle, ev.Vehicle)
	case PersonEntersVehicle:
		b = appendUint(b, fieldEventPerson, ev.Person)
		b = appendUint(b, fieldEventVehicle, ev.Vehicle)
	case PersonLeavesVehicle:
		b = appendUint(b, fieldEventPerson, ev.Person)
		b = appendUint(b, fieldEventVehicle, ev.Vehicle)
	case VehicleEntersTraffic:
		b = appendUint(b, fieldEventPerson, ev.Person)
		b = appendUint(b, fieldEventVehicle, ev.Vehicle)
		b = appendUint(b, fieldEventLink, ev.Link)
		b = appendString(b, fieldEventMode, ev.Mode)
		b = appendDouble(b, fieldEventRelPos, ev.RelativePosition)
	case VehicleLeavesTraffic:
		b = appendUint(b, fieldEventPerson, ev.Person)
		b = appendUint(b, fieldEventVehicle, ev.Vehicle)
		b = appendUint(b, fieldEventLink, ev.Link)
		b = appendString(b, fieldEventMode, ev.Mode)
		b = appendDouble(b, fieldEventRelPos, ev.RelativePosition)
	case TravelledWithPt:
		b = appendUint(b, fieldEventPerson, ev.Person)
		b = appendDouble(b, fieldEventDist, ev.Distance)
		b = appendString(b, fieldEventMode, ev.Mode)
		b = appendString(b, fieldEventLine, ev.Line)
		b = appendString(b, fieldEventRoute, ev.Route)
	case Travelled:
		b = appendUint(b, fieldEventPerson, ev.Person)
		b = appendDouble(b, fieldEventDist, ev.Distance)
		b = appendString(b, fieldEventMode, ev.Mode)
	default:
		panic(fmt.Sprintf("events: unknown event type %T", e))
	}
	return b
}

func appendUint(b []byte, field protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, field, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, field protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, field, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendDouble(b []byte, field protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, field, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// rawEvent accumulates the generic fields read off the wire before
// the concrete variant is assembled once the Kind is known.
type rawEvent struct {
	kind             Kind
	time             uint32
	person           uint64
	link             uint64
	vehicle          uint64
	actType          string
	legMode          string
	mode             string
	line             string
	route            string
	relativePosition float64
	distance         float64
}

// DecodeEvent parses a single message produced by EncodeEvent.
func DecodeEvent(b []byte) (Event, error) {
	var raw rawEvent
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
			case fieldEventKind:
				raw.kind = Kind(v)
			case fieldEventTime:
				raw.time = uint32(v)
			case fieldEventPerson:
				raw.person = v
			case fieldEventLink:
				raw.link = v
			case fieldEventVehicle:
				raw.vehicle = v
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case fieldEventActType:
				raw.actType = string(v)
			case fieldEventLegMode:
				raw.legMode = string(v)
			case fieldEventMode:
				raw.mode = string(v)
			case fieldEventLine:
				raw.line = string(v)
			case fieldEventRoute:
				raw.route = string(v)
			}
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case fieldEventRelPos:
				raw.relativePosition = math.Float64frombits(v)
			case fieldEventDist:
				raw.distance = math.Float64frombits(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return raw.toEvent()
}

func (r rawEvent) toEvent() (Event, error) {
	switch r.kind {
	case KindActStart:
		return NewActStart(r.time, r.person, r.link, r.actType), nil
	case KindActEnd:
		return NewActEnd(r.time, r.person, r.link, r.actType), nil
	case KindDeparture:
		return NewDeparture(r.time, r.person, r.link, r.legMode), nil
	case KindArrival:
		return NewArrival(r.time, r.person, r.link, r.legMode), nil
	case KindLinkEnter:
		return NewLinkEnter(r.time, r.link, r.vehicle), nil
	case KindLinkLeave:
		return NewLinkLeave(r.time, r.link, r.vehicle), nil
	case KindVehicleForcedAhead:
		return NewVehicleForcedAhead(r.time, r.link, r.vehicle), nil
	case KindPersonEntersVehicle:
		return NewPersonEntersVehicle(r.time, r.person, r.vehicle), nil
	case KindPersonLeavesVehicle:
		return NewPersonLeavesVehicle(r.time, r.person, r.vehicle), nil
	case KindVehicleEntersTraffic:
		return NewVehicleEntersTraffic(r.time, r.person, r.vehicle, r.link, r.mode, r.relativePosition), nil
	case KindVehicleLeavesTraffic:
		return NewVehicleLeavesTraffic(r.time, r.person, r.vehicle, r.link, r.mode, r.relativePosition), nil
	case KindTravelledWithPt:
		return NewTravelledWithPt(r.time, r.person, r.distance, r.mode, r.line, r.route), nil
	case KindTravelled:
		return NewTravelled(r.time, r.person, r.distance, r.mode), nil
	default:
		return nil, fmt.Errorf("events: unknown wire kind %d", r.kind)
	}
}

// EncodeTimeStep frames every event sharing a tick into one
// TimeStep{time, data=[]Event} message.
func EncodeTimeStep(time uint32, evs []Event) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldStepTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(time))
	for _, e := range evs {
		b = protowire.AppendTag(b, fieldStepData, protowire.BytesType)
		b = protowire.AppendBytes(b, EncodeEvent(e))
	}
	return b
}

// DecodeTimeStep parses a message produced by EncodeTimeStep.
func DecodeTimeStep(b []byte) (uint32, []Event, error) {
	var time uint32
	var evs []Event
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, nil, protowire.ParseError(n)
			}
			b = b[n:]
			if num == fieldStepTime {
				time = uint32(v)
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, nil, protowire.ParseError(n)
			}
			b = b[n:]
			if num == fieldStepData {
				e, err := DecodeEvent(v)
				if err != nil {
					return 0, nil, err
				}
				evs = append(evs, e)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return time, evs, nil
}
