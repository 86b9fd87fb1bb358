package events

import (
	"bufio"
	"io"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"
)

// BinarySink buffers events for the current tick and, once a later
// tick's event arrives (or Finish is called), writes the buffered
// tick out as one length-delimited TimeStep record: a varint byte
// length followed by the bytes from EncodeTimeStep. This mirrors the
// per-worker binary event stream spec.md §6 describes.
type BinarySink struct {
	mu      sync.Mutex
	w       *bufio.Writer
	closer  io.Closer
	pending uint32
	have    bool
	buf     []Event
}

// NewBinarySink wraps w. If w also implements io.Closer, Finish closes
// it after the final flush.
func NewBinarySink(w io.Writer) *BinarySink {
	s := &BinarySink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *BinarySink) HandleEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.have && e.Time() != s.pending {
		s.flushLocked()
	}
	s.pending = e.Time()
	s.have = true
	s.buf = append(s.buf, e)
}

func (s *BinarySink) flushLocked() {
	if len(s.buf) == 0 {
		return
	}
	msg := EncodeTimeStep(s.pending, s.buf)
	var lenBuf []byte
	lenBuf = protowire.AppendVarint(lenBuf, uint64(len(msg)))
	s.w.Write(lenBuf)
	s.w.Write(msg)
	s.buf = s.buf[:0]
	s.have = false
}

// Finish flushes any buffered tick, the underlying *bufio.Writer, and
// closes w if it was an io.Closer.
func (s *BinarySink) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// ReadTimeSteps decodes every length-delimited TimeStep record written
// by a BinarySink, in file order; its result is the input
// xmlconv.Write renders as XML.
func ReadTimeSteps(r io.Reader) ([]TimeStep, error) {
	br := bufio.NewReader(r)
	var steps []TimeStep
	for {
		length, err := readVarint(br)
		if err == io.EOF {
			return steps, nil
		}
		if err != nil {
			return nil, err
		}
		msg := make([]byte, length)
		if _, err := io.ReadFull(br, msg); err != nil {
			return nil, err
		}
		time, evs, err := DecodeTimeStep(msg)
		if err != nil {
			return nil, err
		}
		steps = append(steps, TimeStep{Time: time, Events: evs})
	}
}

// TimeStep is one decoded record: every event emitted during a single
// simulated second.
type TimeStep struct {
	Time   uint32
	Events []Event
}

func readVarint(br *bufio.Reader) (uint64, error) {
	var buf []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && len(buf) == 0 {
				return 0, io.EOF
			}
			return 0, err
		}
		buf = append(buf, b)
		if b&0x80 == 0 {
			break
		}
	}
	v, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}
