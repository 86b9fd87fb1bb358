package broker

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/logging"
)

// messageItem is one entry in the reorder-buffer min-heap, ordered by
// (time, from_partition) so a tick's messages drain in deterministic
// order even when several arrived ahead of schedule.
type messageItem struct {
	msg SyncMessage
}

type messageHeap []messageItem

func (h messageHeap) Len() int { return len(h) }
func (h messageHeap) Less(i, j int) bool {
	if h[i].msg.Time != h[j].msg.Time {
		return h[i].msg.Time < h[j].msg.Time
	}
	return h[i].msg.FromPartition < h[j].msg.FromPartition
}
func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *messageHeap) Push(x any)   { *h = append(*h, x.(messageItem)) }
func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Broker exchanges one SyncMessage per neighbor per tick: vehicles
// handed off on split-out links and storage credits from split-in
// links, with a min-heap reorder buffer absorbing messages that
// arrive ahead of their tick.
type Broker struct {
	selfPartition   int
	neighbors       map[int]bool
	linkToPartition map[uint64]int

	transport Transport
	log       logging.Logger

	mu          sync.Mutex
	outMessages map[int]*SyncMessage
	inHeap      messageHeap
}

// NewBroker builds a broker for selfPartition. neighbors is the set of
// partitions reachable via a split-in or split-out link on this
// partition's network; linkToPartition maps every link id in the
// whole (unpartitioned) network to the partition that owns it,
// letting AddNetworkVeh/AddTeleportVeh resolve a destination from a
// link id alone.
func NewBroker(selfPartition int, neighbors map[int]bool, linkToPartition map[uint64]int, transport Transport, log logging.Logger) *Broker {
	return &Broker{
		selfPartition:   selfPartition,
		neighbors:       neighbors,
		linkToPartition: linkToPartition,
		transport:       transport,
		log:             log,
		outMessages:     make(map[int]*SyncMessage),
	}
}

// outFor returns (creating if absent) the outgoing message bound for
// partition, stamped with this tick's time. Caller must hold mu.
func (b *Broker) outFor(partition int, now uint32) *SyncMessage {
	msg, ok := b.outMessages[partition]
	if !ok {
		msg = &SyncMessage{Time: now, FromPartition: b.selfPartition, ToPartition: partition}
		b.outMessages[partition] = msg
	}
	return msg
}

// AddNetworkVeh queues v for hand-off into linkID, a link owned by
// another partition (either the link a route crosses into directly,
// or a local split-out link's own id, which this broker's
// linkToPartition resolves to the remote owner).
func (b *Broker) AddNetworkVeh(v *agent.Vehicle, linkID uint64, now uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dest := b.linkToPartition[linkID]
	msg := b.outFor(dest, now)
	msg.NetworkVehicles = append(msg.NetworkVehicles, NetworkHandoff{Vehicle: v, LinkID: linkID})
}

// AddTeleportVeh queues v for hand-off to the partition owning its
// current leg's end link, to arrive there at arrivalTime.
func (b *Broker) AddTeleportVeh(v *agent.Vehicle, arrivalTime uint32, now uint32) {
	endLink := v.Driver.CurrentLeg().Route.EndLink
	b.mu.Lock()
	defer b.mu.Unlock()
	dest := b.linkToPartition[endLink]
	msg := b.outFor(dest, now)
	msg.TeleportVehicles = append(msg.TeleportVehicles, TeleportHandoff{Vehicle: v, ArrivalTime: arrivalTime})
}

// AddCapUpdate queues a storage-credit notification bound for
// fromPartition, the partition whose split-out link feeds linkID's
// split-in link.
func (b *Broker) AddCapUpdate(linkID uint64, released float64, fromPartition int, now uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := b.outFor(fromPartition, now)
	msg.StorageCredits = append(msg.StorageCredits, StorageCredit{LinkID: linkID, Released: released})
}

// SendRecv is the only suspension point in a worker's tick: it ships
// this tick's outgoing messages (one per neighbor, inserting an empty
// one for any neighbor that had nothing to say), drains the reorder
// buffer, and blocks until every neighbor's message for now has been
// received, returning them sorted by (time, from_partition).
func (b *Broker) SendRecv(now uint32) []SyncMessage {
	b.mu.Lock()
	for n := range b.neighbors {
		b.outFor(n, now)
	}
	outgoing := b.outMessages
	b.outMessages = make(map[int]*SyncMessage)

	pending := make(map[int]bool, len(b.neighbors))
	for n := range b.neighbors {
		pending[n] = true
	}

	var result []SyncMessage
	for b.inHeap.Len() > 0 && b.inHeap[0].msg.Time <= now {
		item := heap.Pop(&b.inHeap).(messageItem)
		result = append(result, item.msg)
		delete(pending, item.msg.FromPartition)
	}
	b.mu.Unlock()

	for _, msg := range outgoing {
		if err := b.transport.Send(*msg); err != nil {
			b.log.Fatalf("broker: send to partition %d failed: %v", msg.ToPartition, err)
		}
	}

	incoming := b.transport.Listen()
	for len(pending) > 0 {
		msg := <-incoming
		if msg.Time == now {
			result = append(result, msg)
			delete(pending, msg.FromPartition)
			continue
		}
		b.mu.Lock()
		heap.Push(&b.inHeap, messageItem{msg: msg})
		b.mu.Unlock()
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Time != result[j].Time {
			return result[i].Time < result[j].Time
		}
		return result[i].FromPartition < result[j].FromPartition
	})
	return result
}

// Close releases the underlying transport.
func (b *Broker) Close() error {
	return b.transport.Close()
}
