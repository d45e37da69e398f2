package wire

import "errors"

// Sentinel and typed errors for the codec, following the flat Err* variable
// block style used throughout the corpus (e.g. portal/corev2/common/consts.go)
// for conditions that need no extra context.
var (
	ErrShortRead         = errors.New("wire: short read, transport closed")
	ErrBadMagic          = errors.New("wire: magic does not complement command")
	ErrUnknownCmd        = errors.New("wire: unknown command")
	ErrOversizeFrame     = errors.New("wire: payload exceeds negotiated max_data")
	ErrChecksum          = errors.New("wire: payload checksum mismatch")
	ErrUnexpectedCommand = errors.New("wire: command not valid in current state")
)

// ProtocolError carries the specific codec failure reason alongside the
// command it occurred on, so callers never need to pattern-match error strings
// (spec.md §7). It wraps one of the sentinels above.
type ProtocolError struct {
	Reason  error
	Command Command
}

func (e *ProtocolError) Error() string {
	return "wire: protocol error on " + e.Command.String() + ": " + e.Reason.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Reason }
