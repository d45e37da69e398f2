package pairing

import (
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// sessionKeyInfo namespaces the HKDF output so a pairing-derived key can
// never collide with a main-transport session key even if the same curve
// were reused for both (it is not, but the info string still pins intent).
const sessionKeyInfo = "ADBCORE_PAIRING_SESSION_KEY"

// ephemeralKeyPair is one side's X25519 scalar/point for a single pairing
// attempt; it is discarded once the session key is derived.
type ephemeralKeyPair struct {
	priv [32]byte
	pub  [32]byte
}

func generateEphemeralKeyPair() (ephemeralKeyPair, error) {
	var kp ephemeralKeyPair
	if _, err := rand.Read(kp.priv[:]); err != nil {
		return kp, err
	}
	pub, err := curve25519.X25519(kp.priv[:], curve25519.Basepoint)
	if err != nil {
		return kp, err
	}
	copy(kp.pub[:], pub)
	return kp, nil
}

// deriveSessionKey folds the low-entropy pairing code into the HKDF salt
// alongside the X25519 shared point, so a session key can only be derived by
// a peer that also knows the code printed on the device screen. This is a
// password-salted authenticated-DH construction built from the primitives
// available here, not a literal SPAKE2 transcript (see the pairing package
// doc comment).
func deriveSessionKey(sharedSecret []byte, code string, clientPub, serverPub [32]byte) ([]byte, error) {
	salt := append([]byte(code), clientPub[:]...)
	salt = append(salt, serverPub[:]...)

	h := hkdf.New(sha256.New, sharedSecret, salt, []byte(sessionKeyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := h.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
