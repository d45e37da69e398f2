package wire

import (
	"encoding/binary"
	"io"
)

// HeaderLen is the fixed size of every ADB frame header (spec.md §6
// "Frame layout (bit-exact)").
const HeaderLen = 24

// Frame is an immutable wire message: a 24-byte little-endian header plus
// an optional payload (spec.md §3 "Frame"). The layout mirrors
// portal/corev2/serdes.Header's Serialize/Deserialize split, but the ADB
// header is fixed-size and little-endian rather than variable-length and
// big-endian.
type Frame struct {
	Command      Command
	Arg0         uint32
	Arg1         uint32
	DataChecksum uint32
	Payload      []byte
}

// checksum computes ADB's payload checksum: an unsigned byte sum modulo
// 2^32 (spec.md §4.1 "Payload checksum").
func checksum(payload []byte) uint32 {
	var sum uint32
	for _, b := range payload {
		sum += uint32(b)
	}
	return sum
}

// wantChecksum reports whether the active protocol version requires a
// nonzero checksum to be stamped on an outgoing frame, and whether an
// inbound frame's checksum must be verified (spec.md §4.1).
//
// Checksums are verified only when the active version predates
// V_SKIP_CHECKSUM, or the frame is a CNXN whose own arg0 predates it -- this
// covers a peer that itself speaks pre-skip-checksum semantics regardless of
// which version we negotiated locally.
func wantChecksum(activeVersion uint32, cmd Command, arg0 uint32) bool {
	if activeVersion <= VersionMin {
		return true
	}
	if cmd == CNXN && arg0 <= VersionMin {
		return true
	}
	return false
}

// Encode builds the 24-byte header plus payload for a frame. The checksum
// field is populated per wantChecksum; when the active version skips
// checksums it is written as zero rather than left stale.
func Encode(activeVersion uint32, cmd Command, arg0, arg1 uint32, payload []byte) []byte {
	out := make([]byte, HeaderLen+len(payload))

	var sum uint32
	if wantChecksum(activeVersion, cmd, arg0) && len(payload) > 0 {
		sum = checksum(payload)
	}

	binary.LittleEndian.PutUint32(out[0:4], uint32(cmd))
	binary.LittleEndian.PutUint32(out[4:8], arg0)
	binary.LittleEndian.PutUint32(out[8:12], arg1)
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(payload)))
	binary.LittleEndian.PutUint32(out[16:20], sum)
	binary.LittleEndian.PutUint32(out[20:24], uint32(cmd)^0xFFFFFFFF)
	copy(out[HeaderLen:], payload)

	return out
}

// Reader is the minimal transport surface Decode needs: an exact-count
// reader over the connection's receive half.
type Reader interface {
	ReadFull(buf []byte) error
}

// Decode reads one frame from r: exactly HeaderLen bytes of header, then
// exactly data_len bytes of payload (spec.md §4.1 "decode"). maxData bounds
// the accepted data_len; activeVersion controls whether the checksum is
// verified.
func Decode(r Reader, activeVersion uint32, maxData uint32) (Frame, error) {
	hdr := make([]byte, HeaderLen)
	if err := r.ReadFull(hdr); err != nil {
		return Frame{}, ErrShortRead
	}

	cmd := Command(binary.LittleEndian.Uint32(hdr[0:4]))
	arg0 := binary.LittleEndian.Uint32(hdr[4:8])
	arg1 := binary.LittleEndian.Uint32(hdr[8:12])
	dataLen := binary.LittleEndian.Uint32(hdr[12:16])
	dataChecksum := binary.LittleEndian.Uint32(hdr[16:20])
	magic := binary.LittleEndian.Uint32(hdr[20:24])

	if magic != uint32(cmd)^0xFFFFFFFF {
		return Frame{}, &ProtocolError{Reason: ErrBadMagic, Command: cmd}
	}
	if !cmd.Known() {
		return Frame{}, &ProtocolError{Reason: ErrUnknownCmd, Command: cmd}
	}
	if dataLen > maxData {
		return Frame{}, &ProtocolError{Reason: ErrOversizeFrame, Command: cmd}
	}

	payload := make([]byte, dataLen)
	if dataLen > 0 {
		if err := r.ReadFull(payload); err != nil {
			return Frame{}, ErrShortRead
		}
	}

	if wantChecksum(activeVersion, cmd, arg0) {
		if checksum(payload) != dataChecksum {
			return Frame{}, &ProtocolError{Reason: ErrChecksum, Command: cmd}
		}
	}

	return Frame{
		Command:      cmd,
		Arg0:         arg0,
		Arg1:         arg1,
		DataChecksum: dataChecksum,
		Payload:      payload,
	}, nil
}

// ioReader adapts an io.Reader to the Reader interface via io.ReadFull,
// so callers can Decode straight off a net.Conn or any io.Reader.
type ioReader struct {
	r io.Reader
}

// NewIOReader wraps r so Decode can read exact byte counts from it.
func NewIOReader(r io.Reader) Reader {
	return ioReader{r: r}
}

func (x ioReader) ReadFull(buf []byte) error {
	_, err := io.ReadFull(x.r, buf)
	return err
}
