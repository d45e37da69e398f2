package adb

import (
	"context"
	"testing"
	"time"

	"github.com/go-adb/adbcore/adb/wire"
)

// connectPlain drives a minimal CNXN/CNXN handshake and hands back a ready
// Conn plus the fakeDaemon still holding the transport's receive side, for
// tests that need to drive the multiplexer directly afterward.
func connectPlain(t *testing.T) (*Conn, *fakeDaemon) {
	t.Helper()
	hostTr, daemonTr := newPipeTransports()
	daemon := newFakeDaemon(daemonTr)

	ready := make(chan error, 1)
	go func() {
		frame, err := daemon.recv()
		if err != nil {
			ready <- err
			return
		}
		if frame.Command != wire.CNXN {
			ready <- wire.ErrUnexpectedCommand
			return
		}
		daemon.version = wire.NegotiateVersion(wire.VersionSkipChecksum, frame.Arg0)
		ready <- daemon.send(wire.CNXN, wire.VersionSkipChecksum, 1<<20, []byte("device::\x00"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Connect(ctx, hostTr, NewOptions().WithAdvertisedVersion(wire.VersionSkipChecksum))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := <-ready; err != nil {
		t.Fatalf("daemon handshake: %v", err)
	}
	return conn, daemon
}

// TestOpenRefusedByCLSE exercises a daemon refusing an OPEN outright: a
// CLSE addressed to the still-Opening stream (rather than an OKAY) must
// resolve Open with ErrConnectionRefused, not hang or panic.
func TestOpenRefusedByCLSE(t *testing.T) {
	conn, daemon := connectPlain(t)
	defer conn.Close()

	daemonDone := make(chan error, 1)
	go func() {
		frame, err := daemon.recv()
		if err != nil {
			daemonDone <- err
			return
		}
		if frame.Command != wire.OPEN {
			daemonDone <- wire.ErrUnexpectedCommand
			return
		}
		daemonDone <- daemon.send(wire.CLSE, 0, frame.Arg0, nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := conn.Open(ctx, "tcp:1")
	if err != ErrConnectionRefused {
		t.Fatalf("open error = %v, want ErrConnectionRefused", err)
	}
	if err := <-daemonDone; err != nil {
		t.Fatalf("daemon: %v", err)
	}
}

// TestLocalIDsNeverReused opens and closes several streams and checks the
// multiplexer never hands out the same local id twice, even across closed
// streams (spec.md §8 P5).
func TestLocalIDsNeverReused(t *testing.T) {
	conn, daemon := connectPlain(t)
	defer conn.Close()

	const rounds = 4
	seen := make(map[uint32]bool)

	daemonDone := make(chan error, 1)
	go func() {
		for i := 0; i < rounds; i++ {
			frame, err := daemon.recv()
			if err != nil {
				daemonDone <- err
				return
			}
			if frame.Command != wire.OPEN {
				daemonDone <- wire.ErrUnexpectedCommand
				return
			}
			if err := daemon.send(wire.OKAY, uint32(100+i), frame.Arg0, nil); err != nil {
				daemonDone <- err
				return
			}
			frame, err = daemon.recv()
			if err != nil {
				daemonDone <- err
				return
			}
			if frame.Command != wire.CLSE {
				daemonDone <- wire.ErrUnexpectedCommand
				return
			}
		}
		daemonDone <- nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < rounds; i++ {
		s, err := conn.Open(ctx, "tcp:1")
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if seen[s.LocalID()] {
			t.Fatalf("local id %d reused", s.LocalID())
		}
		seen[s.LocalID()] = true
		if err := s.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}

	if err := <-daemonDone; err != nil {
		t.Fatalf("daemon: %v", err)
	}
}

// TestShutdownFailsOpenStreams checks that Conn.Close unblocks an
// outstanding Read on an open stream with an error instead of hanging it
// forever (spec.md §8 P7 "orderly close").
func TestShutdownFailsOpenStreams(t *testing.T) {
	conn, daemon := connectPlain(t)

	daemonDone := make(chan error, 1)
	go func() {
		frame, err := daemon.recv()
		if err != nil {
			daemonDone <- err
			return
		}
		if frame.Command != wire.OPEN {
			daemonDone <- wire.ErrUnexpectedCommand
			return
		}
		daemonDone <- daemon.send(wire.OKAY, 9, frame.Arg0, nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream, err := conn.Open(ctx, "tcp:1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := <-daemonDone; err != nil {
		t.Fatalf("daemon: %v", err)
	}

	readErr := make(chan error, 1)
	go func() {
		_, err := stream.Read(make([]byte, 4))
		readErr <- err
	}()

	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-readErr:
		if err == nil {
			t.Fatalf("read returned nil error after shutdown, want ErrConnectionClosed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read did not unblock after Conn.Close")
	}
}
