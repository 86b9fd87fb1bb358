package broker

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/logging"
)

// PeerAddr names the TCP endpoint another partition's TCPTransport
// listens on.
type PeerAddr struct {
	Partition int
	Addr      string
}

// TCPTransport is the networked Broker backend: every partition
// listens on its own address and dials every peer once at
// construction, framing each SyncMessage as a 4-byte big-endian
// length prefix followed by its JSON encoding.
type TCPTransport struct {
	self int
	log  logging.Logger

	listener net.Listener
	produced chan SyncMessage
	done     chan struct{}

	mu    sync.Mutex
	conns map[int]net.Conn
}

// NewTCPTransport listens on listenAddr and dials every peer in
// peers. Dialing happens once at construction, with no retry, so
// every peer must already be listening when it is called.
func NewTCPTransport(self int, listenAddr string, peers []PeerAddr, log logging.Logger) (*TCPTransport, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("broker: listen on %s: %w", listenAddr, err)
	}

	t := &TCPTransport{
		self:     self,
		log:      log,
		listener: ln,
		produced: make(chan SyncMessage, 256),
		done:     make(chan struct{}),
		conns:    make(map[int]net.Conn),
	}
	go t.acceptLoop()

	for _, p := range peers {
		conn, err := net.Dial("tcp", p.Addr)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("broker: dial partition %d at %s: %w", p.Partition, p.Addr, err)
		}
		t.mu.Lock()
		t.conns[p.Partition] = conn
		t.mu.Unlock()
	}
	return t, nil
}

func (t *TCPTransport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				t.log.Errorf("broker: accept on partition %d failed: %v", t.self, err)
				return
			}
		}
		go t.readLoop(conn)
	}
}

func (t *TCPTransport) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			t.log.Errorf("broker: read frame on partition %d: %v", t.self, err)
			return
		}
		var msg SyncMessage
		if err := json.Unmarshal(buf, &msg); err != nil {
			t.log.Errorf("broker: unmarshal frame on partition %d: %v", t.self, err)
			continue
		}
		select {
		case t.produced <- msg:
		case <-t.done:
			return
		}
	}
}

// Send frames msg and writes it to the connection for msg.ToPartition.
func (t *TCPTransport) Send(msg SyncMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker: marshal message to partition %d: %w", msg.ToPartition, err)
	}

	t.mu.Lock()
	conn, ok := t.conns[msg.ToPartition]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("broker: no connection to partition %d", msg.ToPartition)
	}

	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(data)))
	copy(frame[4:], data)
	_, err = conn.Write(frame)
	return err
}

func (t *TCPTransport) Listen() <-chan SyncMessage {
	return t.produced
}

// Close stops accepting new connections, closes every dialed peer
// connection, and unblocks any in-flight readLoop goroutines.
func (t *TCPTransport) Close() error {
	close(t.done)
	t.mu.Lock()
	for _, c := range t.conns {
		c.Close()
	}
	t.mu.Unlock()
	return t.listener.Close()
}
