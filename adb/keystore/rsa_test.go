package keystore

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"math/big"
	"testing"
)

func mustIdentity(t *testing.T) (*rsa.PrivateKey, *Identity) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	id, err := NewIdentity(priv, "unknown@host")
	if err != nil {
		t.Fatalf("new identity: %v", err)
	}
	return priv, id
}

// TestEncodedPublicLength pins the blob's fixed size: the P8 "byte-for-byte"
// property this test can check without a live adbd reference encoder is the
// struct's exact size and field placement; the arithmetic invariants below
// (modulus/rr/n0inv recoverability) are what make the layout bit-identical
// to adbd's, given the same RSA key.
func TestEncodedPublicLength(t *testing.T) {
	_, id := mustIdentity(t)
	blob := id.EncodedPublic()

	label := "unknown@host"
	want := 4 + 4 + rsaWords*4 + rsaWords*4 + 4 + len(label) + 1
	if len(blob) != want {
		t.Fatalf("blob length = %d, want %d", len(blob), want)
	}
	if blob[len(blob)-1] != 0 {
		t.Fatalf("blob must be NUL-terminated")
	}
	if string(blob[len(blob)-1-len(label):len(blob)-1]) != label {
		t.Fatalf("label mismatch: %q", blob[len(blob)-1-len(label):len(blob)-1])
	}
}

func TestEncodedPublicLenWord(t *testing.T) {
	_, id := mustIdentity(t)
	blob := id.EncodedPublic()
	got := binary.LittleEndian.Uint32(blob[0:4])
	if got != rsaWords {
		t.Fatalf("len word = %d, want %d", got, rsaWords)
	}
}

func TestEncodedPublicModulusRoundTrips(t *testing.T) {
	priv, id := mustIdentity(t)
	blob := id.EncodedPublic()

	modulusBytes := blob[8 : 8+rsaWords*4]
	recovered := wordsToBigInt(modulusBytes)
	if recovered.Cmp(priv.N) != 0 {
		t.Fatalf("recovered modulus does not match key's N")
	}
}

func TestEncodedPublicRRIsBarrettConstant(t *testing.T) {
	priv, id := mustIdentity(t)
	blob := id.EncodedPublic()

	rrBytes := blob[8+rsaWords*4 : 8+rsaWords*4+rsaWords*4]
	rr := wordsToBigInt(rrBytes)

	want := new(big.Int).Exp(big.NewInt(2), big.NewInt(4096), priv.N)
	if rr.Cmp(want) != 0 {
		t.Fatalf("rr does not equal 2^4096 mod n")
	}
}

func TestEncodedPublicExponentIs65537(t *testing.T) {
	_, id := mustIdentity(t)
	blob := id.EncodedPublic()
	expOff := 8 + rsaWords*4 + rsaWords*4
	got := binary.LittleEndian.Uint32(blob[expOff : expOff+4])
	if got != 65537 {
		t.Fatalf("exponent = %d, want 65537", got)
	}
}

func TestEncodedPublicN0InvIsModularNegativeInverse(t *testing.T) {
	priv, id := mustIdentity(t)
	blob := id.EncodedPublic()
	n0inv := binary.LittleEndian.Uint32(blob[4:8])

	two32 := new(big.Int).Lsh(big.NewInt(1), 32)
	n0 := new(big.Int).Mod(priv.N, two32)

	// n0 * n0inv == -1 (mod 2^32)
	prod := new(big.Int).Mul(n0, big.NewInt(0).SetUint64(uint64(n0inv)))
	prod.Mod(prod, two32)
	prod.Add(prod, big.NewInt(1))
	prod.Mod(prod, two32)
	if prod.Sign() != 0 {
		t.Fatalf("n0 * n0inv + 1 != 0 (mod 2^32)")
	}
}

func TestSignRejectsWrongTokenLength(t *testing.T) {
	_, id := mustIdentity(t)
	if _, err := id.Sign([]byte("too short")); err == nil {
		t.Fatal("expected error for non-20-byte token")
	}
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	priv, id := mustIdentity(t)
	token := make([]byte, 20)
	if _, err := rand.Read(token); err != nil {
		t.Fatalf("rand: %v", err)
	}

	sig, err := id.Sign(token)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := rsa.VerifyPKCS1v15(&priv.PublicKey, crypto.SHA1, token, sig); err != nil {
		t.Fatalf("signature did not verify: %v", err)
	}
}

func wordsToBigInt(words []byte) *big.Int {
	n := new(big.Int)
	for i := len(words)/4 - 1; i >= 0; i-- {
		word := binary.LittleEndian.Uint32(words[i*4 : i*4+4])
		n.Lsh(n, 32)
		n.Or(n, new(big.Int).SetUint64(uint64(word)))
	}
	return n
}
