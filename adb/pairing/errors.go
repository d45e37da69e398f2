package pairing

import "errors"

// Sentinel errors for the pairing subflow (spec.md §4.5 "Failure conditions").
var (
	ErrPairingRejected  = errors.New("pairing: wrong pairing code")
	ErrPairingAborted   = errors.New("pairing: transport closed mid-exchange")
	ErrEnvelopeTooLarge = errors.New("pairing: envelope exceeds maximum size")
)
