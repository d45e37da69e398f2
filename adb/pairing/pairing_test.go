package pairing

import (
	"io"
	"testing"

	"github.com/go-adb/adbcore/adb/keystore"
)

// pipeConn adapts a pair of io.Pipe halves into a single io.ReadWriteCloser,
// the same shape relaydns/core/cryptoops/handshaker_test.go uses to drive
// its handshake across two goroutines without a real socket.
type pipeConn struct {
	r      io.Reader
	w      io.Writer
	closer io.Closer
}

func (c *pipeConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *pipeConn) Write(p []byte) (int, error) { return c.w.Write(p) }
func (c *pipeConn) Close() error                { return c.closer.Close() }

func pipePair() (hostSide, deviceSide *pipeConn) {
	hostRead, deviceWrite := io.Pipe()
	deviceRead, hostWrite := io.Pipe()
	hostSide = &pipeConn{r: hostRead, w: hostWrite, closer: hostWrite}
	deviceSide = &pipeConn{r: deviceRead, w: deviceWrite, closer: deviceWrite}
	return
}

func testIdentity(t *testing.T, label string) *keystore.Identity {
	t.Helper()
	id, err := keystore.GenerateIdentity(label)
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	return id
}

func TestPairSucceedsWithMatchingCode(t *testing.T) {
	hostConn, deviceConn := pipePair()
	hostIdentity := testIdentity(t, "host")
	deviceIdentity := testIdentity(t, "device")

	type result struct {
		trusted *TrustedIdentity
		err     error
	}
	hostDone := make(chan result, 1)
	deviceDone := make(chan result, 1)

	go func() {
		trusted, err := Pair(hostConn, "123456", hostIdentity)
		hostDone <- result{trusted, err}
	}()
	go func() {
		trusted, err := Accept(deviceConn, "123456", deviceIdentity)
		deviceDone <- result{trusted, err}
	}()

	hostResult := <-hostDone
	deviceResult := <-deviceDone

	if hostResult.err != nil {
		t.Fatalf("host pairing failed: %v", hostResult.err)
	}
	if deviceResult.err != nil {
		t.Fatalf("device pairing failed: %v", deviceResult.err)
	}

	if hostResult.trusted.Fingerprint != keystore.FingerprintOf(deviceIdentity.EncodedPublic()) {
		t.Fatalf("host did not learn the device's fingerprint")
	}
	if deviceResult.trusted.Fingerprint != keystore.FingerprintOf(hostIdentity.EncodedPublic()) {
		t.Fatalf("device did not learn the host's fingerprint")
	}
}

// TestPairRejectsMismatchedCode exercises the device side of the exchange
// directly: the device derives a session key from the wrong code, so
// authenticating the host's sealed envelope fails and Accept reports
// ErrPairingRejected without ever sending its own ack. The host sees its
// peer vanish mid-exchange and reports ErrPairingAborted -- the wire gives
// no distinct "wrong code" signal to the side that wasn't the one to
// detect it, which is why the device's verdict is the one this test pins.
func TestPairRejectsMismatchedCode(t *testing.T) {
	hostConn, deviceConn := pipePair()
	hostIdentity := testIdentity(t, "host")
	deviceIdentity := testIdentity(t, "device")

	hostErr := make(chan error, 1)
	deviceErr := make(chan error, 1)

	go func() {
		_, err := Pair(hostConn, "123456", hostIdentity)
		hostErr <- err
	}()
	go func() {
		_, err := Accept(deviceConn, "000000", deviceIdentity)
		deviceErr <- err
		deviceConn.Close()
	}()

	if err := <-deviceErr; err != ErrPairingRejected {
		t.Fatalf("device: expected ErrPairingRejected, got %v", err)
	}
	if err := <-hostErr; err != ErrPairingAborted {
		t.Fatalf("host: expected ErrPairingAborted once the device hung up, got %v", err)
	}
}

func TestPairAbortedWhenPeerClosesEarly(t *testing.T) {
	hostConn, deviceConn := pipePair()
	hostIdentity := testIdentity(t, "host")

	deviceConn.r.(*io.PipeReader).Close()
	deviceConn.Close()

	_, err := Pair(hostConn, "123456", hostIdentity)
	if err != ErrPairingAborted {
		t.Fatalf("expected ErrPairingAborted, got %v", err)
	}
}

func TestEqualCodeConstantTime(t *testing.T) {
	if !equalCode("123456", "123456") {
		t.Fatal("identical codes should compare equal")
	}
	if equalCode("123456", "654321") {
		t.Fatal("different codes should not compare equal")
	}
}
