package adb

import (
	"context"

	"github.com/go-adb/adbcore/adb/transport"
)

// Conn is an authenticated ADB connection ready to open streams. It is
// the public façade over the handshake state machine and the
// Multiplexer that takes over once Connected.
type Conn struct {
	mux *Multiplexer
}

// Connect runs the handshake over tr and, on success, starts the
// connection's reader task. The returned Conn is usable concurrently by
// any number of callers opening streams.
func Connect(ctx context.Context, tr transport.Transport, opts Options) (*Conn, error) {
	result, err := runHandshake(ctx, tr, opts)
	if err != nil {
		tr.Close()
		return nil, err
	}

	mux := newMultiplexer(tr, result)
	go mux.run()

	select {
	case mux.events <- ConnEvent{Kind: EventConnected}:
	default:
	}

	return &Conn{mux: mux}, nil
}

// Open starts a new logical stream to destination (e.g. "shell:echo hi",
// "sync:", "tcp:8080"); see spec.md §6 for the documented destination
// forms. It blocks until the daemon answers with OKAY or CLSE, or ctx is
// cancelled.
func (c *Conn) Open(ctx context.Context, destination string) (*Stream, error) {
	return c.mux.Open(ctx, destination)
}

// Banner returns the daemon's raw CNXN payload (e.g.
// "device::ro.product.name=...;features=...").
func (c *Conn) Banner() []byte { return c.mux.banner }

// ActiveVersion returns the negotiated protocol version.
func (c *Conn) ActiveVersion() uint32 { return c.mux.activeVersion }

// ActiveMaxData returns the negotiated maximum payload size.
func (c *Conn) ActiveMaxData() uint32 { return c.mux.activeMaxData }

// Events returns the connection's observer channel; it is closed once
// the connection shuts down, after a final EventShutdown entry.
func (c *Conn) Events() <-chan ConnEvent { return c.mux.events }

// Close shuts the connection down: every open stream fails with
// ErrConnectionClosed and the transport is closed.
func (c *Conn) Close() error {
	c.mux.shutdown(ErrConnectionClosed)
	return nil
}
