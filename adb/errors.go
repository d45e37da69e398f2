// Package adb implements the ADB wire protocol: frame codec, RSA/pairing
// authentication, and a multiplexed stream transport, split across this
// package and its wire, keystore, pairing and transport subpackages.
package adb

import "errors"

// Connection-level error kinds (spec.md §7), surfaced as sentinels so
// callers switch on identity rather than matching error strings.
var (
	ErrTransportClosed      = errors.New("adb: transport closed")
	ErrAuthenticationFailed = errors.New("adb: authentication failed")
	ErrPairingRequired      = errors.New("adb: pairing required")
	ErrConnectionRefused    = errors.New("adb: connection refused")
	ErrStreamClosed         = errors.New("adb: stream closed")
	ErrConnectionClosed     = errors.New("adb: connection closed")
)
