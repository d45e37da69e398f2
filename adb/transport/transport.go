// Package transport defines the byte-level connection surface the
// handshake and multiplexer run over, plus concrete TCP and TLS-upgrade
// implementations (spec.md §4.3 "Transport"). It deliberately knows
// nothing about frames: it reads and writes bytes, and can upgrade itself
// in place to TLS once STLS negotiation completes.
package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"
)

// Transport is the minimal connection surface the protocol state machine
// needs: plain byte-stream reads and writes (exact-count reads are layered
// on top by wire.NewIOReader), a close, and an in-place TLS upgrade. Grounded on portal's own transport abstraction (a net.Conn
// wrapped just enough to swap out the underlying reader/writer on STLS),
// generalised here to an explicit interface so tests can supply fakes.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer

	// SetDeadline forwards to the underlying connection when supported;
	// implementations over non-deadline-capable streams (e.g. a
	// WebSocket) may treat this as a no-op.
	SetDeadline(t time.Time) error

	// UpgradeToTLS replaces the transport's read/write path with a TLS
	// connection negotiated over the current one, returning once the
	// handshake completes (spec.md §4.4 TlsPending).
	UpgradeToTLS(ctx context.Context, cfg *tls.Config) error
}

// TCPTransport is a Transport backed by a net.Conn, upgradable to TLS.
type TCPTransport struct {
	conn net.Conn
}

// DialTCP connects to addr (host:port) and returns a TCPTransport ready
// for the CNXN handshake.
func DialTCP(ctx context.Context, addr string) (*TCPTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPTransport{conn: conn}, nil
}

// NewTCPTransport wraps an already-established net.Conn, e.g. one accepted
// by a test listener.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn}
}

func (t *TCPTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *TCPTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *TCPTransport) Close() error                { return t.conn.Close() }

func (t *TCPTransport) SetDeadline(dl time.Time) error {
	return t.conn.SetDeadline(dl)
}

// UpgradeToTLS wraps the current net.Conn in a tls.Conn and performs the
// handshake inline, honoring ctx for cancellation the way the rest of the
// package threads contexts through blocking network calls.
func (t *TCPTransport) UpgradeToTLS(ctx context.Context, cfg *tls.Config) error {
	tlsConn := tls.Client(t.conn, cfg)
	if dl, ok := ctx.Deadline(); ok {
		if err := tlsConn.SetDeadline(dl); err != nil {
			return err
		}
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return err
	}
	t.conn = tlsConn
	return nil
}
