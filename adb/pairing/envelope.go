package pairing

import (
	"encoding/binary"
	"io"
)

// aPair is the PAIR command identifier carried in the envelope's type field.
// It is not part of the wire.Command set: the pairing port never negotiates
// CNXN, and the envelope's own framing is big-endian where every other ADB
// frame is little-endian (spec.md §4.5, §6 "Transport bytes").
const aPair uint32 = 0x52494150 // "PAIR" as adbd's A_PAIR constant encodes it

// maxEnvelopeSize bounds an inbound PAIR payload; pairing exchanges are a
// handful of short messages, never a bulk transfer.
const maxEnvelopeSize = 1 << 16

// writeEnvelope sends one PAIR frame: an 8-byte big-endian { type, length }
// prefix followed by payload, deliberately differing from the little-endian
// framing used everywhere else in the protocol (spec.md §4.5).
func writeEnvelope(w io.Writer, payload []byte) error {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], aPair)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// readEnvelope reads one PAIR frame, returning ErrPairingAborted if the
// connection closes before a full frame arrives.
func readEnvelope(r io.Reader) ([]byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, ErrPairingAborted
	}

	length := binary.BigEndian.Uint32(hdr[4:8])
	if length > maxEnvelopeSize {
		return nil, ErrEnvelopeTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, ErrPairingAborted
		}
	}
	return payload, nil
}
