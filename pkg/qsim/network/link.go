package network

// Vehicle is the minimal view a link needs of a vehicle: enough to
// size it in PCE units and compute free-flow traversal time. The
// agent package's Vehicle type satisfies this.
type Vehicle interface {
	VehicleID() uint64
	PCE() float64
	MaxSpeed() float64
}

type queueEntry struct {
	vehicle      Vehicle
	earliestExit uint32
}

// Link is the identity every link variant shares.
type Link interface {
	ID() uint64
	From() uint64
	To() uint64
	IsAvailable() bool
}

// QueueLink is a local or split-in link: every operation the
// node-movement routine needs from an incoming link.
type QueueLink interface {
	Link
	UpdateCapacity(now uint32)
	FillBuffer(now uint32)
	OffersVeh(now uint32) (Vehicle, bool)
	PopVeh() Vehicle
	PushVeh(v Vehicle, now uint32)
	IsVehStuck(now uint32) bool
	ApplyStorageCapUpdates()
	FlowCapValue() float64
}

// OutLink is a split-out link: the node-movement routine's view of the
// remote hand-off queue.
type OutLink interface {
	Link
	PushVeh(v Vehicle)
	TakeVeh() []Vehicle
	ApplyRemoteCredit(released float64)
}

// LocalLink is both endpoints on this worker: a FIFO queue, a
// ready-to-move buffer, a waiting list with priority over the queue, a
// flow cap, a storage cap and a stuck timer.
type LocalLink struct {
	id, from, to uint64

	Length      float64
	Freespeed   float64
	Permlanes   float64
	CapacityPerHour float64

	queue       []queueEntry
	buffer      []Vehicle
	waitingList []Vehicle

	flow    *FlowCap
	storage *StorageCap
	stuck   *StuckTimer
}

// NewLocalLink builds a link with flow/storage capacity derived from
// the given scenario-wide parameters, matching spec.md §3/§4.1.
func NewLocalLink(id, from, to uint64, length, freespeed, permlanes, capacityPerHour, sampleSize, effectiveCellSize float64, stuckThreshold uint32) *LocalLink {
	fc := NewFlowCap(capacityPerHour, sampleSize)
	return &LocalLink{
		id: id, from: from, to: to,
		Length: length, Freespeed: freespeed, Permlanes: permlanes, CapacityPerHour: capacityPerHour,
		flow:    fc,
		storage: NewStorageCap(fc.capacityPerSecond, length, permlanes, sampleSize, effectiveCellSize),
		stuck:   NewStuckTimer(stuckThreshold),
	}
}

func (l *LocalLink) ID() uint64   { return l.id }
func (l *LocalLink) From() uint64 { return l.from }
func (l *LocalLink) To() uint64   { return l.to }

func (l *LocalLink) IsAvailable() bool { return l.storage.IsAvailable() }

// TraversalDuration computes max(1, floor(length / min(freespeed,
// vehicle.max_v))) seconds.
func (l *LocalLink) TraversalDuration(v Vehicle) uint32 {
	speed := l.Freespeed
	if v.MaxSpeed() < speed {
		speed = v.MaxSpeed()
	}
	dur := uint32(l.Length / speed)
	if dur < 1 {
		dur = 1
	}
	return dur
}

// PushVeh appends v to the tail of the queue with its computed exit
// time, and consumes its PCE from storage. The caller must have
// checked IsAvailable first.
func (l *LocalLink) PushVeh(v Vehicle, now uint32) {
	dur := l.TraversalDuration(v)
	l.storage.Consume(v.PCE())
	l.queue = append(l.queue, queueEntry{vehicle: v, earliestExit: now + dur})
}

// FillBuffer drains the waiting list, then moves queue-head entries
// whose earliest_exit has arrived, both while preserving FIFO order.
// Every vehicle this implementation pushes onto a link goes through
// PushVeh and its traversal-time computation (max(1, ...) always gives
// at least one full tick of travel, so nothing ever skips the queue
// straight to the waiting list); the waiting list stays in the
// buffer-fill order spec.md describes so a snapshot loader can seed
// vehicles that are already mid-traversal at scenario start without
// re-deriving their exit time.
func (l *LocalLink) FillBuffer(now uint32) {
	for _, v := range l.waitingList {
		l.buffer = append(l.buffer, v)
	}
	l.waitingList = l.waitingList[:0]

	i := 0
	for ; i < len(l.queue) && l.queue[i].earliestExit <= now; i++ {
		l.buffer = append(l.buffer, l.queue[i].vehicle)
	}
	l.queue = l.queue[i:]
}

// UpdateCapacity advances the flow-cap accumulator to now.
func (l *LocalLink) UpdateCapacity(now uint32) {
	l.flow.Update(now)
}

// OffersVeh returns the buffer head iff flow capacity remains. A
// successful offer (idempotently) starts the stuck timer.
func (l *LocalLink) OffersVeh(now uint32) (Vehicle, bool) {
	if len(l.buffer) == 0 || !l.flow.HasCapacityLeft() {
		return nil, false
	}
	l.stuck.Start(now)
	return l.buffer[0], true
}

// PopVeh removes the buffer head, consumes flow capacity, releases
// storage and resets the stuck timer. Must follow a successful
// OffersVeh.
func (l *LocalLink) PopVeh() Vehicle {
	v := l.buffer[0]
	l.buffer = l.buffer[1:]
	l.flow.Consume(v.PCE())
	l.storage.Release(v.PCE())
	l.stuck.Reset()
	return v
}

// IsVehStuck reports whether the buffer head has been waiting at
// least the stuck threshold.
func (l *LocalLink) IsVehStuck(now uint32) bool {
	return len(l.buffer) > 0 && l.stuck.IsStuck(now)
}

// FlowCapValue exposes the current flow-cap accumulator, used by
// node-movement's weighted random selection among multiple offering
// in-links.
func (l *LocalLink) FlowCapValue() float64 { return l.flow.value }

// ApplyStorageCapUpdates finalizes this tick's storage consumption and
// releases. Called once per tick by move_links.
func (l *LocalLink) ApplyStorageCapUpdates() {
	l.storage.ApplyUpdates()
}

// BufferLen reports how many vehicles are ready to move, for tests and
// metrics.
func (l *LocalLink) BufferLen() int { return len(l.buffer) }

// QueueLen reports how many vehicles are still travelling (not yet at
// the buffer), for tests and metrics.
func (l *LocalLink) QueueLen() int { return len(l.queue) }

// SplitInLink's `to` node is local but `from` is remote: it behaves
// exactly like a local link downstream, plus tracks released storage
// to report upstream.
type SplitInLink struct {
	*LocalLink
	FromPartition int
}

// NewSplitInLink wraps a LocalLink with the remote source partition.
func NewSplitInLink(local *LocalLink, fromPartition int) *SplitInLink {
	return &SplitInLink{LocalLink: local, FromPartition: fromPartition}
}

// Released returns this tick's not-yet-applied storage release, used
// by the broker to decide whether to ship an upstream credit.
func (l *SplitInLink) Released() float64 {
	return l.storage.Released()
}

// SplitOutLink's `from` node is local but `to` is remote: it only
// buffers an outbound shipment queue and mirrors the remote storage
// state, with no buffer or flow cap of its own.
type SplitOutLink struct {
	id, from, to uint64
	ToPartition  int

	outbound []Vehicle
	storage  *StorageCap
}

// NewSplitOutLink builds a split-out link whose storage accumulator
// mirrors the remote downstream partition's capacity for the purpose
// of local is_available() checks.
func NewSplitOutLink(id, from, to uint64, toPartition int, length, permlanes, capacityPerHour, sampleSize, effectiveCellSize float64) *SplitOutLink {
	fc := NewFlowCap(capacityPerHour, sampleSize)
	return &SplitOutLink{
		id: id, from: from, to: to, ToPartition: toPartition,
		storage: NewStorageCap(fc.capacityPerSecond, length, permlanes, sampleSize, effectiveCellSize),
	}
}

func (l *SplitOutLink) ID() uint64   { return l.id }
func (l *SplitOutLink) From() uint64 { return l.from }
func (l *SplitOutLink) To() uint64   { return l.to }

func (l *SplitOutLink) IsAvailable() bool { return l.storage.IsAvailable() }

// PushVeh consumes storage and appends v to the outbound shipment
// queue; it does not compute an exit time since traversal happens on
// the remote side.
func (l *SplitOutLink) PushVeh(v Vehicle) {
	l.storage.Consume(v.PCE())
	l.outbound = append(l.outbound, v)
}

// TakeVeh drains and returns the entire outbound queue, finalizing
// this tick's storage bookkeeping. Called once per tick by the
// broker via move_links.
func (l *SplitOutLink) TakeVeh() []Vehicle {
	out := l.outbound
	l.outbound = nil
	l.storage.ApplyUpdates()
	return out
}

// ApplyRemoteCredit applies a storage-credit message from the
// downstream partition: the remote side freed `released` PCE, so the
// local mirror must reflect that immediately.
func (l *SplitOutLink) ApplyRemoteCredit(released float64) {
	l.storage.Consume(-released)
	l.storage.ApplyUpdates()
}
