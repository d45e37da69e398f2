package adb

import (
	"context"
	"sync"

	"github.com/go-adb/adbcore/adb/wire"
)

// streamState mirrors spec.md §3's Stream.state enumeration.
type streamState int

const (
	streamOpening streamState = iota
	streamOpen
	streamHalfClosed
	streamClosed
)

// Stream is a single multiplexed logical connection (shell session, sync
// service, forwarded port, ...) over one adb.Conn. It holds its local id
// and a direct pointer to its Multiplexer, through which it sends frames;
// the Multiplexer owns the authoritative stream table and points back at
// the Stream, so the two reference each other.
type Stream struct {
	mux     *Multiplexer
	localID uint32

	mu          sync.Mutex
	cond        *sync.Cond
	state       streamState
	remoteID    uint32
	resolved    bool
	openErr     error
	closeCause  error
	readQueue   [][]byte
	writePermit bool
}

func newStream(mux *Multiplexer, localID uint32) *Stream {
	s := &Stream{mux: mux, localID: localID, state: streamOpening}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// LocalID returns the id this host assigned the stream.
func (s *Stream) LocalID() uint32 { return s.localID }

// waitOpened blocks until OKAY or CLSE resolves the Opening state, or ctx
// is cancelled first. A cancellation leaves the stream Closed with ctx's
// error as the cause, satisfying the "cancelled open must not leave the
// stream inconsistent" requirement (spec.md §5).
func (s *Stream) waitOpened(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if !s.resolved {
				s.resolved = true
				s.openErr = ctx.Err()
				s.state = streamClosed
				s.closeCause = ctx.Err()
				s.cond.Broadcast()
			}
			s.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.resolved {
		s.cond.Wait()
	}
	return s.openErr
}

// onOKAY handles an inbound OKAY for this stream: it resolves Opening
// into Open (recording the peer's stream id) or, for an already-Open
// stream, reopens the write permit (spec.md §4.6).
func (s *Stream) onOKAY(remote uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case streamOpening:
		s.remoteID = remote
		s.state = streamOpen
		s.writePermit = true
		s.resolved = true
	case streamOpen:
		s.writePermit = true
	default:
		return
	}
	s.cond.Broadcast()
}

// appendData queues inbound WRTE payload for Read. It reports false if
// the stream is already Closed, telling the caller to answer with CLSE
// instead of OKAY (spec.md §4.6).
func (s *Stream) appendData(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == streamClosed {
		return false
	}
	if len(data) > 0 {
		s.readQueue = append(s.readQueue, data)
		s.cond.Broadcast()
	}
	return true
}

// onPeerClose handles an inbound CLSE. A stream still Opening was
// refused before ever completing; an Open or HalfClosed stream moves to
// HalfClosed so queued data already received still drains through Read.
func (s *Stream) onPeerClose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case streamOpening:
		s.resolved = true
		s.openErr = ErrConnectionRefused
		s.state = streamClosed
		s.closeCause = ErrConnectionRefused
	case streamOpen, streamHalfClosed:
		s.state = streamHalfClosed
	default:
		return
	}
	s.cond.Broadcast()
}

// Read implements spec.md §4.7: it returns queued bytes in arrival
// order, 0 with a nil error on graceful peer-initiated EOF once the
// queue drains, and ErrStreamClosed if this side closed the stream.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if len(s.readQueue) > 0 {
			chunk := s.readQueue[0]
			n := copy(p, chunk)
			if n < len(chunk) {
				s.readQueue[0] = chunk[n:]
			} else {
				s.readQueue = s.readQueue[1:]
			}
			return n, nil
		}

		switch s.state {
		case streamHalfClosed:
			s.state = streamClosed
			return 0, nil
		case streamClosed:
			if s.closeCause != nil && s.closeCause != ErrConnectionRefused {
				return 0, s.closeCause
			}
			return 0, nil
		}
		s.cond.Wait()
	}
}

// Write implements the chunked, OKAY-gated write path of spec.md §4.6:
// each chunk waits for the write permit, is sent as one WRTE, and the
// call does not return until the final chunk's OKAY has reopened the
// permit.
func (s *Stream) Write(p []byte) (int, error) {
	maxData := int(s.mux.activeMaxData)
	if maxData <= 0 {
		maxData = len(p)
	}

	total := 0
	for len(p) > 0 {
		chunkLen := len(p)
		if chunkLen > maxData {
			chunkLen = maxData
		}
		chunk := p[:chunkLen]
		p = p[chunkLen:]

		if err := s.acquirePermit(); err != nil {
			return total, err
		}
		remote := s.remoteIDSnapshot()
		if err := s.mux.sendFrame(wire.WRTE, s.localID, remote, chunk); err != nil {
			return total, ErrTransportClosed
		}
		total += chunkLen
	}

	if err := s.waitPermit(); err != nil {
		return total, err
	}
	return total, nil
}

// Close is idempotent: it sends CLSE for the stream and wakes any
// blocked Read/Write with ErrStreamClosed (spec.md §4.6).
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.state == streamClosed {
		s.mu.Unlock()
		return nil
	}
	remote := s.remoteID
	s.state = streamClosed
	s.closeCause = ErrStreamClosed
	s.cond.Broadcast()
	s.mu.Unlock()

	s.mux.removeStream(s.localID)
	return s.mux.sendFrame(wire.CLSE, s.localID, remote, nil)
}

func (s *Stream) remoteIDSnapshot() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

func (s *Stream) acquirePermit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.writePermit {
		if s.state == streamClosed {
			return s.closedWriteErrorLocked()
		}
		s.cond.Wait()
	}
	s.writePermit = false
	return nil
}

func (s *Stream) waitPermit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.writePermit {
		if s.state == streamClosed {
			return s.closedWriteErrorLocked()
		}
		s.cond.Wait()
	}
	return nil
}

func (s *Stream) closedWriteErrorLocked() error {
	if s.closeCause != nil {
		return s.closeCause
	}
	return ErrStreamClosed
}

// failLocally is invoked by the multiplexer's shutdown path: it fails
// every suspension point with cause without sending any frame, since the
// transport is already gone.
func (s *Stream) failLocally(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == streamClosed {
		return
	}
	if !s.resolved {
		s.resolved = true
		s.openErr = cause
	}
	s.state = streamClosed
	s.closeCause = cause
	s.cond.Broadcast()
}
