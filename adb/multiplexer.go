package adb

import (
	"context"
	"sync"

	"github.com/go-adb/adbcore/adb/transport"
	"github.com/go-adb/adbcore/adb/wire"
)

// Multiplexer owns the transport's receive side and the per-connection
// stream table (spec.md §4.6). Exactly one goroutine (run) ever reads
// frames off the wire; every other caller reaches it only through the
// Stream handles Open returns or through sendFrame's own write lock,
// following the single-reader/single-writer split spec.md §5 requires.
type Multiplexer struct {
	tr            transport.Transport
	writeMu       sync.Mutex
	activeVersion uint32
	activeMaxData uint32
	banner        []byte

	mu          sync.Mutex
	streams     map[uint32]*Stream
	nextLocalID uint32
	closed      bool
	closeCause  error

	events chan ConnEvent
}

func newMultiplexer(tr transport.Transport, hr handshakeResult) *Multiplexer {
	return &Multiplexer{
		tr:            tr,
		activeVersion: hr.ActiveVersion,
		activeMaxData: hr.ActiveMaxData,
		banner:        hr.Banner,
		streams:       make(map[uint32]*Stream),
		nextLocalID:   1,
		events:        make(chan ConnEvent, 8),
	}
}

func (m *Multiplexer) sendFrame(cmd wire.Command, arg0, arg1 uint32, payload []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err := m.tr.Write(wire.Encode(m.activeVersion, cmd, arg0, arg1, payload))
	return err
}

// Open assigns the next local id, registers the stream, sends OPEN, and
// blocks until OKAY (success), CLSE (ErrConnectionRefused), or ctx
// cancellation resolves it (spec.md §4.6).
func (m *Multiplexer) Open(ctx context.Context, destination string) (*Stream, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	id := m.nextLocalID
	m.nextLocalID++
	s := newStream(m, id)
	m.streams[id] = s
	m.mu.Unlock()

	payload := append([]byte(destination), 0)
	if err := m.sendFrame(wire.OPEN, id, 0, payload); err != nil {
		m.removeStream(id)
		return nil, ErrTransportClosed
	}

	if err := s.waitOpened(ctx); err != nil {
		m.removeStream(id)
		return nil, err
	}
	return s, nil
}

func (m *Multiplexer) removeStream(id uint32) {
	m.mu.Lock()
	delete(m.streams, id)
	m.mu.Unlock()
}

func (m *Multiplexer) lookup(id uint32) (*Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[id]
	return s, ok
}

// run is the connection's single reader task: it owns tr's receive half
// until a fatal error or shutdown, dispatching each frame to its stream
// (spec.md §4.6 "recv loop").
func (m *Multiplexer) run() {
	reader := wire.NewIOReader(m.tr)
	for {
		frame, err := wire.Decode(reader, m.activeVersion, m.activeMaxData)
		if err != nil {
			m.shutdown(asConnError(err))
			return
		}

		switch frame.Command {
		case wire.OKAY:
			if s, ok := m.lookup(frame.Arg1); ok {
				s.onOKAY(frame.Arg0)
			}

		case wire.WRTE:
			s, ok := m.lookup(frame.Arg1)
			if !ok || !s.appendData(frame.Payload) {
				_ = m.sendFrame(wire.CLSE, frame.Arg1, frame.Arg0, nil)
				continue
			}
			if err := m.sendFrame(wire.OKAY, frame.Arg1, frame.Arg0, nil); err != nil {
				m.shutdown(ErrTransportClosed)
				return
			}

		case wire.CLSE:
			if s, ok := m.lookup(frame.Arg1); ok {
				s.onPeerClose()
				m.removeStream(frame.Arg1)
			}

		case wire.CNXN, wire.AUTH, wire.STLS:
			m.shutdown(&wire.ProtocolError{Reason: wire.ErrUnexpectedCommand, Command: frame.Command})
			return

		default:
			m.shutdown(&wire.ProtocolError{Reason: wire.ErrUnknownCmd, Command: frame.Command})
			return
		}
	}
}

// shutdown tears the connection down exactly once: every pending and
// future stream operation fails with cause, the transport is closed, and
// an EventShutdown is posted (spec.md §4.6 "shutdown()", §7
// "Propagation").
func (m *Multiplexer) shutdown(cause error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.closeCause = cause
	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.streams = make(map[uint32]*Stream)
	m.mu.Unlock()

	for _, s := range streams {
		s.failLocally(cause)
	}
	m.tr.Close()

	select {
	case m.events <- ConnEvent{Kind: EventShutdown, Cause: cause}:
	default:
	}
	close(m.events)
}

func asConnError(err error) error {
	if perr, ok := err.(*wire.ProtocolError); ok {
		return perr
	}
	return ErrTransportClosed
}
