package scenario

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/network"
)

// Network record field numbers. Node and link records share one kind
// tag and flat field space, the same pattern events/wire.go uses to
// make one decoder reconstruct either concrete variant.
const (
	netFieldKind      = 1 // varint: netKindNode or netKindLink
	netFieldID        = 2 // varint
	netFieldX         = 3 // fixed64 (double)
	netFieldY         = 4 // fixed64 (double)
	netFieldFrom      = 5 // varint
	netFieldTo        = 6 // varint
	netFieldLength    = 7 // fixed64 (double)
	netFieldFreespeed = 8 // fixed64 (double)
	netFieldPermlanes = 9 // fixed64 (double)
	netFieldCapacity  = 10 // fixed64 (double), capacity per hour
)

const (
	netKindNode = 1
	netKindLink = 2
)

// NodeRecord is one network node as read from a scenario's network
// file.
type NodeRecord struct {
	ID   uint64
	X, Y float64
}

// LinkRecord is one network link as read from a scenario's network
// file. CapacityPerHour, Length and Freespeed feed directly into
// network.NewLocalLink.
type LinkRecord struct {
	ID              uint64
	From, To        uint64
	Length          float64
	Freespeed       float64
	Permlanes       float64
	CapacityPerHour float64
}

func encodeNode(n NodeRecord) []byte {
	var b []byte
	b = appendUint(b, netFieldKind, netKindNode)
	b = appendUint(b, netFieldID, n.ID)
	b = appendDouble(b, netFieldX, n.X)
	b = appendDouble(b, netFieldY, n.Y)
	return b
}

func encodeLink(l LinkRecord) []byte {
	var b []byte
	b = appendUint(b, netFieldKind, netKindLink)
	b = appendUint(b, netFieldID, l.ID)
	b = appendUint(b, netFieldFrom, l.From)
	b = appendUint(b, netFieldTo, l.To)
	b = appendDouble(b, netFieldLength, l.Length)
	b = appendDouble(b, netFieldFreespeed, l.Freespeed)
	b = appendDouble(b, netFieldPermlanes, l.Permlanes)
	b = appendDouble(b, netFieldCapacity, l.CapacityPerHour)
	return b
}

// decodeNetworkRecord parses one record into either a *NodeRecord or a
// *LinkRecord, the other returned as nil.
func decodeNetworkRecord(b []byte) (*NodeRecord, *LinkRecord, error) {
	var kind uint64
	var id, from, to uint64
	var x, y, length, freespeed, permlanes, capacity float64

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case netFieldKind:
				kind = v
			case netFieldID:
				id = v
			case netFieldFrom:
				from = v
			case netFieldTo:
				to = v
			}
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, nil, protowire.ParseError(n)
			}
			b = b[n:]
			f := math.Float64frombits(v)
			switch num {
			case netFieldX:
				x = f
			case netFieldY:
				y = f
			case netFieldLength:
				length = f
			case netFieldFreespeed:
				freespeed = f
			case netFieldPermlanes:
				permlanes = f
			case netFieldCapacity:
				capacity = f
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}

	switch kind {
	case netKindNode:
		return &NodeRecord{ID: id, X: x, Y: y}, nil, nil
	case netKindLink:
		return nil, &LinkRecord{ID: id, From: from, To: to, Length: length, Freespeed: freespeed, Permlanes: permlanes, CapacityPerHour: capacity}, nil
	default:
		return nil, nil, fmt.Errorf("scenario: unknown network record kind %d", kind)
	}
}

// ReadNetwork decodes a network file's node and link records into a
// single-partition network.Network: every link becomes a
// network.LocalLink, matching config.PartitionNone (see Load).
// sampleSize, effectiveCellSize and stuckThreshold come from the
// scenario's simulation config and are applied identically to every
// link, per spec.md §3.
func ReadNetwork(r io.Reader, sampleSize, effectiveCellSize float64, stuckThreshold uint32) (*network.Network, error) {
	net := network.NewNetwork()
	br := bufio.NewReader(r)

	var links []*LinkRecord
	for {
		payload, err := readRecord(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scenario: reading network record: %w", err)
		}
		node, link, err := decodeNetworkRecord(payload)
		if err != nil {
			return nil, err
		}
		if node != nil {
			net.AddNode(&network.Node{ID: node.ID, Coord: network.Coord{X: node.X, Y: node.Y}})
		}
		if link != nil {
			links = append(links, link)
		}
	}

	for _, l := range links {
		net.AddLink(network.NewLocalLink(l.ID, l.From, l.To, l.Length, l.Freespeed, l.Permlanes, l.CapacityPerHour, sampleSize, effectiveCellSize, stuckThreshold))
	}
	return net, nil
}

// WriteNetwork encodes nodes and links as a network file ReadNetwork
// can parse back, used by tests and by a scenario-authoring tool.
func WriteNetwork(w io.Writer, nodes []NodeRecord, links []LinkRecord) error {
	bw := bufio.NewWriter(w)
	for _, n := range nodes {
		if err := writeRecord(bw, encodeNode(n)); err != nil {
			return err
		}
	}
	for _, l := range links {
		if err := writeRecord(bw, encodeLink(l)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
