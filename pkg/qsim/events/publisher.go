package events

// Sink receives events from a Publisher. HandleEvent is called
// synchronously on the worker's own goroutine, once per published
// event, in emission order; implementations that fan out across
// goroutines are responsible for their own synchronization.
type Sink interface {
	HandleEvent(e Event)
}

// Finisher is implemented by sinks that need to flush or close
// resources once a run ends.
type Finisher interface {
	Finish() error
}

// Publisher fans events out to subscribers, either per Kind or to
// every event regardless of kind (a "catch all" sink, e.g. the
// BinarySink that serializes everything). It is worker-local: each
// partition worker owns exactly one Publisher and is expected to call
// Publish from a single goroutine, matching spec.md's requirement that
// subscribers enqueueing across threads handle their own safety.
type Publisher struct {
	perKind map[Kind][]Sink
	all     []Sink
}

// NewPublisher creates an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{perKind: make(map[Kind][]Sink)}
}

// On registers sink to receive only events of the given kind.
func (p *Publisher) On(kind Kind, sink Sink) {
	p.perKind[kind] = append(p.perKind[kind], sink)
}

// OnAny registers sink to receive every event, regardless of kind.
func (p *Publisher) OnAny(sink Sink) {
	p.all = append(p.all, sink)
}

// Publish dispatches e to every subscriber registered for its kind
// and every catch-all subscriber, in registration order.
func (p *Publisher) Publish(e Event) {
	for _, s := range p.perKind[e.Kind()] {
		s.HandleEvent(e)
	}
	for _, s := range p.all {
		s.HandleEvent(e)
	}
}

// Finish calls Finish on every subscriber that implements Finisher.
// Errors are collected; the first one is returned after every sink has
// had a chance to flush.
func (p *Publisher) Finish() error {
	var first error
	seen := make(map[Sink]bool)
	finish := func(s Sink) {
		if seen[s] {
			return
		}
		seen[s] = true
		if f, ok := s.(Finisher); ok {
			if err := f.Finish(); err != nil && first == nil {
				first = err
			}
		}
	}
	for _, sinks := range p.perKind {
		for _, s := range sinks {
			finish(s)
		}
	}
	for _, s := range p.all {
		finish(s)
	}
	return first
}
