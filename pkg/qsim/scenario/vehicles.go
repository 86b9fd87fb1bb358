package scenario

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
)

// Vehicle-type record field numbers: a vehicles file holds exactly one
// record kind, so unlike network.go/population.go there is no kind
// tag.
const (
	vehFieldID                  = 1 // varint
	vehFieldLength              = 2 // fixed64 (double)
	vehFieldWidth               = 3 // fixed64 (double)
	vehFieldMaxV                = 4 // fixed64 (double)
	vehFieldPCE                 = 5 // fixed64 (double)
	vehFieldFlowEfficiencyFactor = 6 // fixed64 (double)
	vehFieldNetworkMode         = 7 // bytes (string)
	vehFieldLevelOfDetail       = 8 // varint
)

func encodeVehicleType(t agent.VehicleType) []byte {
	var b []byte
	b = appendUint(b, vehFieldID, t.ID)
	b = appendDouble(b, vehFieldLength, t.Length)
	b = appendDouble(b, vehFieldWidth, t.Width)
	b = appendDouble(b, vehFieldMaxV, t.MaxV)
	b = appendDouble(b, vehFieldPCE, t.PCE)
	b = appendDouble(b, vehFieldFlowEfficiencyFactor, t.FlowEfficiencyFactor)
	b = appendString(b, vehFieldNetworkMode, t.NetworkMode)
	b = appendUint(b, vehFieldLevelOfDetail, uint64(t.LevelOfDetail))
	return b
}

func decodeVehicleType(b []byte) (agent.VehicleType, error) {
	var t agent.VehicleType
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return t, protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return t, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case vehFieldID:
				t.ID = v
			case vehFieldLevelOfDetail:
				t.LevelOfDetail = agent.LevelOfDetail(v)
			}
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return t, protowire.ParseError(n)
			}
			b = b[n:]
			f := math.Float64frombits(v)
			switch num {
			case vehFieldLength:
				t.Length = f
			case vehFieldWidth:
				t.Width = f
			case vehFieldMaxV:
				t.MaxV = f
			case vehFieldPCE:
				t.PCE = f
			case vehFieldFlowEfficiencyFactor:
				t.FlowEfficiencyFactor = f
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return t, protowire.ParseError(n)
			}
			b = b[n:]
			if num == vehFieldNetworkMode {
				t.NetworkMode = string(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return t, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return t, nil
}

// ReadVehicleTypes decodes a vehicles file into the garage's declared
// type table, keyed by type id.
func ReadVehicleTypes(r io.Reader) (map[uint64]agent.VehicleType, error) {
	br := bufio.NewReader(r)
	out := make(map[uint64]agent.VehicleType)
	for {
		payload, err := readRecord(br)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("scenario: reading vehicle-type record: %w", err)
		}
		t, err := decodeVehicleType(payload)
		if err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
}

// WriteVehicleTypes encodes types as a vehicles file ReadVehicleTypes
// can parse back, used by tests and by a scenario-authoring tool.
func WriteVehicleTypes(w io.Writer, types []agent.VehicleType) error {
	bw := bufio.NewWriter(w)
	for _, t := range types {
		if err := writeRecord(bw, encodeVehicleType(t)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
