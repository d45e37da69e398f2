// Package pairing implements the pre-connection pairing flow used to
// enrol a host's RSA identity with adbd over the pairing port, as a
// separate connection from the main ADB transport (spec.md §4.5).
//
// adbd's own pairing protocol is SPAKE2-over-TLS; the reference source
// available here does not include adbd's SPAKE2 implementation, and the
// source's own pairing stub merely hashes the code with the public key,
// which the protocol notes explicitly call out as insecure and not to be
// reproduced. What this package implements instead is a password-salted
// X25519 key exchange in the same style as relaydns/core/cryptoops's
// identity handshake: an ephemeral Diffie-Hellman exchange whose derived
// session key folds in the pairing code, followed by an authenticated
// envelope exchange of each side's encoded public key. It gives the same
// external shape (code in, TrustedIdentity out, wrong code rejected) as a
// real SPAKE2 exchange without claiming SPAKE2's resistance to an
// active attacker who never knew the code; swapping in a real SPAKE2
// implementation later only touches deriveSessionKey and the two
// exported entry points below.
package pairing

import (
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/go-adb/adbcore/adb/keystore"
)

// TrustedIdentity is the result of a successful pairing exchange: the
// peer's fingerprint and raw adbd-encoded public key, ready to be recorded
// by a trust store keyed on that fingerprint.
type TrustedIdentity struct {
	Fingerprint string
	PublicKey   []byte
}

// Pair performs the host side of the pairing exchange with adbd listening
// on conn, authenticating the session key derivation with code (the
// 6-digit string shown on the device screen) and offering local's encoded
// public key for enrolment.
func Pair(conn io.ReadWriteCloser, code string, local *keystore.Identity) (*TrustedIdentity, error) {
	host, err := generateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}

	if err := writeEnvelope(conn, host.pub[:]); err != nil {
		return nil, ErrPairingAborted
	}

	peerPubBytes, err := readEnvelope(conn)
	if err != nil {
		return nil, err
	}
	if len(peerPubBytes) != 32 {
		return nil, ErrPairingRejected
	}
	var peerPub [32]byte
	copy(peerPub[:], peerPubBytes)

	shared, err := x25519(host.priv, peerPub)
	if err != nil {
		return nil, err
	}

	key, err := deriveSessionKey(shared, code, host.pub, peerPub)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	sealed := aead.Seal(nil, nonce, local.EncodedPublic(), nil)
	if err := writeEnvelope(conn, sealed); err != nil {
		return nil, ErrPairingAborted
	}

	peerSealed, err := readEnvelope(conn)
	if err != nil {
		return nil, err
	}
	peerAckNonce := make([]byte, chacha20poly1305.NonceSize)
	peerAckNonce[len(peerAckNonce)-1] = 1
	peerBlob, err := aead.Open(nil, peerAckNonce, peerSealed, nil)
	if err != nil {
		return nil, ErrPairingRejected
	}

	return &TrustedIdentity{
		Fingerprint: keystore.FingerprintOf(peerBlob),
		PublicKey:   peerBlob,
	}, nil
}

// Accept performs the adbd-facing side of the same exchange, used by tests
// to exercise Pair end to end without a real device. A production adbd
// peer is never driven by this package; it is provided so the pairing
// protocol can be verified symmetrically.
func Accept(conn io.ReadWriteCloser, code string, local *keystore.Identity) (*TrustedIdentity, error) {
	peerPubBytes, err := readEnvelope(conn)
	if err != nil {
		return nil, err
	}
	if len(peerPubBytes) != 32 {
		return nil, ErrPairingRejected
	}
	var peerPub [32]byte
	copy(peerPub[:], peerPubBytes)

	device, err := generateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}
	if err := writeEnvelope(conn, device.pub[:]); err != nil {
		return nil, ErrPairingAborted
	}

	shared, err := x25519(device.priv, peerPub)
	if err != nil {
		return nil, err
	}
	key, err := deriveSessionKey(shared, code, peerPub, device.pub)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	peerSealed, err := readEnvelope(conn)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	peerBlob, err := aead.Open(nil, nonce, peerSealed, nil)
	if err != nil {
		return nil, ErrPairingRejected
	}

	ackNonce := make([]byte, chacha20poly1305.NonceSize)
	ackNonce[len(ackNonce)-1] = 1
	sealed := aead.Seal(nil, ackNonce, local.EncodedPublic(), nil)
	if err := writeEnvelope(conn, sealed); err != nil {
		return nil, ErrPairingAborted
	}

	return &TrustedIdentity{
		Fingerprint: keystore.FingerprintOf(peerBlob),
		PublicKey:   peerBlob,
	}, nil
}

func x25519(priv, pub [32]byte) ([]byte, error) {
	return curve25519.X25519(priv[:], pub[:])
}

// equalCode is unused outside tests that want constant-time comparisons of
// a locally entered code against a displayed one; kept alongside the
// exchange logic since both guard against the same low-entropy secret.
func equalCode(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
