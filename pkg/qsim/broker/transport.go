package broker

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Transport is the pluggable per-tick exchange backend a Broker ships
// SyncMessages through: in-process channels within one OS process
// (Hub/InProcessTransport below), or a networked backend across
// machines (TCPTransport, in tcp_transport.go).
type Transport interface {
	// Send delivers msg to the partition named by msg.ToPartition.
	Send(msg SyncMessage) error

	// Listen returns the channel this partition's incoming messages
	// arrive on.
	Listen() <-chan SyncMessage

	// Close releases any resources (connections, goroutines) held by
	// the transport.
	Close() error
}

// Hub wires every partition's InProcessTransport together within a
// single process. Send on one partition's transport JSON round-trips
// the message and delivers it onto the recipient's Listen channel,
// matching the wire shape a networked transport would use so swapping
// backends never changes message semantics.
type Hub struct {
	mu      sync.Mutex
	inboxes map[int]chan SyncMessage
}

// NewHub builds a hub with one buffered inbox per partition in ranks.
func NewHub(ranks []int) *Hub {
	h := &Hub{inboxes: make(map[int]chan SyncMessage, len(ranks))}
	for _, r := range ranks {
		h.inboxes[r] = make(chan SyncMessage, 64)
	}
	return h
}

// Transport returns the InProcessTransport for partition rank. rank
// must have been included in the ranks passed to NewHub.
func (h *Hub) Transport(rank int) *InProcessTransport {
	return &InProcessTransport{hub: h, self: rank}
}

// InProcessTransport is the default Broker backend: a thin adapter
// over a shared Hub's channels.
type InProcessTransport struct {
	hub  *Hub
	self int

	mu     sync.Mutex
	closed bool
}

// Send JSON-encodes msg and decodes it into a fresh SyncMessage before
// delivery, so a message handed to a remote partition never aliases
// the sender's in-memory vehicle graph.
func (t *InProcessTransport) Send(msg SyncMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker: marshal message to partition %d: %w", msg.ToPartition, err)
	}
	var out SyncMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("broker: unmarshal message to partition %d: %w", msg.ToPartition, err)
	}

	t.hub.mu.Lock()
	inbox, ok := t.hub.inboxes[msg.ToPartition]
	t.hub.mu.Unlock()
	if !ok {
		return fmt.Errorf("broker: no partition %d registered on this hub", msg.ToPartition)
	}
	inbox <- out
	return nil
}

func (t *InProcessTransport) Listen() <-chan SyncMessage {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	return t.hub.inboxes[t.self]
}

func (t *InProcessTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
