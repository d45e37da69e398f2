// Package ws provides an alternate Transport that tunnels the ADB wire
// protocol over a WebSocket connection instead of a raw TCP socket, for
// hosts that can only reach adbd through an HTTP(S) relay (domain stack
// §2.4). The wrapping pattern -- an explicit struct guarding a WebSocket
// connection behind plain Read/Write/Close, with its own mutexes rather
// than trusting the library's internal locking -- follows
// portal/utils/wsstream.WsStream, adapted from gorilla/websocket's
// NextReader/WriteMessage pair to coder/websocket's Reader/Writer pair.
package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// ErrTLSUpgradeUnsupported is returned by UpgradeToTLS: a WebSocket
// transport is already expected to run over wss (TLS underneath), so
// there is no inline STLS upgrade to perform a second time.
var ErrTLSUpgradeUnsupported = errors.New("ws: in-place TLS upgrade not supported over a WebSocket transport")

// Transport adapts a coder/websocket connection to the byte-stream
// surface adb/transport.Transport needs.
type Transport struct {
	conn *websocket.Conn
	ctx  context.Context

	readMu  sync.Mutex
	writeMu sync.Mutex
	reader  io.Reader
}

// Dial opens a WebSocket connection to url and wraps it as a Transport.
// ctx governs the lifetime of all subsequent reads and writes, matching
// coder/websocket's context-scoped API.
func Dial(ctx context.Context, url string) (*Transport, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(-1)
	return &Transport{conn: conn, ctx: ctx}, nil
}

// New wraps an already-established coder/websocket connection, e.g. one
// produced by websocket.Accept on a relay's HTTP handler.
func New(ctx context.Context, conn *websocket.Conn) *Transport {
	conn.SetReadLimit(-1)
	return &Transport{conn: conn, ctx: ctx}
}

func (t *Transport) Read(p []byte) (int, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	for {
		if t.reader == nil {
			_, r, err := t.conn.Reader(t.ctx)
			if err != nil {
				return 0, mapCloseErr(err)
			}
			t.reader = r
		}

		n, err := t.reader.Read(p)
		if err == io.EOF {
			t.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			return n, mapCloseErr(err)
		}
		return n, nil
	}
}

func (t *Transport) Write(p []byte) (int, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.Write(t.ctx, websocket.MessageBinary, p); err != nil {
		return 0, mapCloseErr(err)
	}
	return len(p), nil
}

func (t *Transport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}

// SetDeadline is a no-op: coder/websocket reads and writes are governed by
// the context passed to Dial/New, not per-call deadlines.
func (t *Transport) SetDeadline(time.Time) error { return nil }

func (t *Transport) UpgradeToTLS(context.Context, *tls.Config) error {
	return ErrTLSUpgradeUnsupported
}

func mapCloseErr(err error) error {
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		return io.EOF
	}
	return err
}
