// Package keystore provides RSA-2048 identities for the ADB auth handshake:
// signing the AUTH token and encoding the adbd Montgomery-form public-key
// blob (spec.md §4.2). The shape of Identity/KeyStore follows
// portal/corev2/identity.Credential (private key, derived public
// representation, ID), generalised from the teacher's single Ed25519
// identity to an ordered list of RSA identities, since ADB hosts offer
// several keys in turn until the daemon accepts one.
package keystore

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base32"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"math/big"
)

// rsaWords is the word count of a 2048-bit modulus in 32-bit words
// (RSANUMWORDS in adbd's own crypto/rsa_pubkey.c).
const rsaWords = 64

var ErrUnsupportedKeySize = errors.New("keystore: only RSA-2048 identities are supported")

var idMagic = []byte("ADBCORE_HOST_KEY_ID_SHA256")
var base32Encoding = base32.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZ234567").WithPadding(base32.NoPadding)

// Identity is one RSA-2048 keypair plus its cached adbd-format public blob.
type Identity struct {
	Label      string
	private    *rsa.PrivateKey
	encodedPub []byte
	id         string
}

// NewIdentity derives an Identity from an existing RSA private key,
// precomputing the adbd public-key blob once so repeated AUTH attempts
// don't redo the Montgomery-form math.
func NewIdentity(priv *rsa.PrivateKey, label string) (*Identity, error) {
	if priv.N.BitLen() != 2048 {
		return nil, ErrUnsupportedKeySize
	}
	blob, err := encodePublicKey(&priv.PublicKey, label)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Label:      label,
		private:    priv,
		encodedPub: blob,
		id:         FingerprintOf(blob),
	}, nil
}

// FingerprintOf derives the same short, stable fingerprint NewIdentity
// assigns its own identities from an arbitrary encoded public-key blob, so a
// peer's fingerprint can be computed (e.g. after pairing hands back its raw
// blob) without holding its private key.
func FingerprintOf(encodedPublic []byte) string {
	sum := sha256.Sum256(encodedPublic)
	return base32Encoding.EncodeToString(sum[:16])
}

// GenerateIdentity creates a fresh RSA-2048 identity. Intended for tests and
// first-run provisioning; long-lived hosts persist the PEM instead.
func GenerateIdentity(label string) (*Identity, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return NewIdentity(priv, label)
}

// ParsePKCS1PrivateKeyPEM loads an identity from a PEM-encoded PKCS#1 RSA
// private key, the format adb keygen produces for "adbkey".
func ParsePKCS1PrivateKeyPEM(data []byte, label string) (*Identity, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("keystore: no PEM block found")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return NewIdentity(priv, label)
}

// MarshalPKCS1PrivateKeyPEM renders the identity's private key in the same
// PEM/PKCS#1 form ParsePKCS1PrivateKeyPEM reads back, so a freshly
// generated identity can be persisted to an "adbkey" file.
func (id *Identity) MarshalPKCS1PrivateKeyPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(id.private),
	})
}

// ID is a short fingerprint of the encoded public key, stable across
// processes, suitable as a trust-store lookup key (see cmd/adbctl/truststore).
func (id *Identity) ID() string { return id.id }

// EncodedPublic returns the adbd-format public-key blob, including the
// trailing NUL-terminated label (spec.md §4.2).
func (id *Identity) EncodedPublic() []byte { return id.encodedPub }

// PublicKey exposes the underlying RSA public key.
func (id *Identity) PublicKey() *rsa.PublicKey { return &id.private.PublicKey }

// Sign computes adbd's AUTH signature: PKCS#1 v1.5 padding for SHA-1, over
// the token bytes treated directly as the (already 20-byte) digest -- adbd
// does not re-hash the token before signing (spec.md §4.2).
func (id *Identity) Sign(token []byte) ([]byte, error) {
	if len(token) != sha1DigestSize {
		return nil, errors.New("keystore: AUTH token must be 20 bytes")
	}
	return rsa.SignPKCS1v15(rand.Reader, id.private, crypto.SHA1, token)
}

const sha1DigestSize = 20

// KeyStore holds the ordered list of identities a host offers to adbd in
// turn (spec.md §4.2 "identities() -> list of ..."), mirroring the
// Credential-per-connection shape of portal/corev2/identity.Credential
// generalised to a slice since the handshake must retry across keys.
type KeyStore struct {
	identities []*Identity
}

// NewKeyStore builds a KeyStore from an ordered slice of identities; the
// first entry is also treated as the "primary" identity offered via
// AUTH(RSAPUBLICKEY) once every signed identity has been rejected.
func NewKeyStore(identities ...*Identity) *KeyStore {
	return &KeyStore{identities: identities}
}

// Identities returns the ordered list of identities this store offers.
func (ks *KeyStore) Identities() []*Identity { return ks.identities }

// Primary returns the first identity, the one whose public key is sent via
// AUTH(RSAPUBLICKEY) for user-acceptance enrolment.
func (ks *KeyStore) Primary() *Identity {
	if len(ks.identities) == 0 {
		return nil
	}
	return ks.identities[0]
}

// encodePublicKey produces adbd's fixed Montgomery-form RSA public key blob:
//
//	u32 len          (modulus size in 32-bit words, 64 for RSA-2048)
//	u32 n0inv        (-1/n[0] mod 2^32)
//	u8  modulus[256] (64 little-endian u32 words, least-significant first)
//	u8  rr[256]      (Barrett's rr = 2^4096 mod n, same word layout)
//	u32 exponent     (65537)
//	ascii label + NUL
//
// This must be bit-identical to adbd's own encoder (spec.md §4.2, P8).
func encodePublicKey(pub *rsa.PublicKey, label string) ([]byte, error) {
	n := pub.N
	if n.BitLen() != 2048 {
		return nil, ErrUnsupportedKeySize
	}

	two32 := new(big.Int).Lsh(big.NewInt(1), 32)
	n0 := new(big.Int).Mod(n, two32)
	inv := new(big.Int).ModInverse(n0, two32)
	if inv == nil {
		return nil, errors.New("keystore: modulus has no inverse mod 2^32")
	}
	n0inv := new(big.Int).Sub(two32, inv)
	n0inv.Mod(n0inv, two32)

	r2 := new(big.Int).Exp(big.NewInt(2), big.NewInt(4096), n)

	out := make([]byte, 0, 4+4+rsaWords*4+rsaWords*4+4+len(label)+1)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(rsaWords))
	out = append(out, u32[:]...)

	binary.LittleEndian.PutUint32(u32[:], uint32(n0inv.Uint64()))
	out = append(out, u32[:]...)

	out = append(out, littleEndianWords(n, rsaWords)...)
	out = append(out, littleEndianWords(r2, rsaWords)...)

	binary.LittleEndian.PutUint32(u32[:], uint32(pub.E))
	out = append(out, u32[:]...)

	out = append(out, []byte(label)...)
	out = append(out, 0)

	return out, nil
}

// littleEndianWords renders n as numWords little-endian 32-bit words,
// least-significant word first, zero-padded to numWords*4 bytes.
func littleEndianWords(n *big.Int, numWords int) []byte {
	out := make([]byte, numWords*4)
	mask := new(big.Int).SetUint64(0xFFFFFFFF)
	tmp := new(big.Int).Set(n)
	word := new(big.Int)
	for i := 0; i < numWords; i++ {
		word.And(tmp, mask)
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], uint32(word.Uint64()))
		tmp.Rsh(tmp, 32)
	}
	return out
}
