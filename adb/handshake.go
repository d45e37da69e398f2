package adb

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-adb/adbcore/adb/keystore"
	"github.com/go-adb/adbcore/adb/transport"
	"github.com/go-adb/adbcore/adb/wire"
)

// handshakeState enumerates the CNXN/AUTH/STLS state machine (spec.md
// §4.4). Connected has no state constant: reaching it ends the loop
// below and returns a handshakeResult instead.
type handshakeState int

const (
	stateWaitBanner handshakeState = iota
	stateWaitBannerAfterSig
	stateWaitUserAccept
)

// handshakeResult carries everything the multiplexer needs once Connected
// is reached: the negotiated version and max_data, and the daemon's raw
// banner payload for callers to inspect.
type handshakeResult struct {
	ActiveVersion uint32
	ActiveMaxData uint32
	Banner        []byte
}

// runHandshake drives tr through SendCnxn up to Connected, or returns one
// of the taxonomy errors in spec.md §7. It owns tr's deadline for the
// duration of the handshake only and clears it again before returning.
func runHandshake(ctx context.Context, tr transport.Transport, opts Options) (handshakeResult, error) {
	if deadline := opts.HandshakeDeadline; deadline > 0 {
		_ = tr.SetDeadline(time.Now().Add(deadline))
		defer tr.SetDeadline(time.Time{})
	}

	localVersion := opts.AdvertisedVersion
	cnxnPayload := []byte(opts.SystemBanner)
	if _, err := tr.Write(wire.Encode(localVersion, wire.CNXN, localVersion, opts.AdvertisedMaxData, cnxnPayload)); err != nil {
		return handshakeResult{}, ErrTransportClosed
	}

	var identities []*keystore.Identity
	if opts.Identities != nil {
		identities = opts.Identities.Identities()
	}
	tried := 0

	reader := wire.NewIOReader(tr)
	// Before negotiation settles, decode against our own advertised
	// version: a host advertising V_SKIP_CHECKSUM does not expect
	// checksums pre-negotiation either, while a legacy peer is still
	// caught by decode's own "CNXN with arg0<=V_MIN" clause (spec.md
	// §4.1).
	decodeVersion := localVersion
	state := stateWaitBanner

	for {
		frame, err := wire.Decode(reader, decodeVersion, opts.AdvertisedMaxData)
		if err != nil {
			if perr, ok := err.(*wire.ProtocolError); ok {
				return handshakeResult{}, perr
			}
			return handshakeResult{}, ErrTransportClosed
		}

		switch frame.Command {
		case wire.CNXN:
			activeVersion := wire.NegotiateVersion(localVersion, frame.Arg0)
			activeMaxData := wire.NegotiateMaxData(opts.AdvertisedMaxData, frame.Arg1)
			return handshakeResult{
				ActiveVersion: activeVersion,
				ActiveMaxData: activeMaxData,
				Banner:        frame.Payload,
			}, nil

		case wire.STLS:
			if opts.TLS == TLSForbid {
				return handshakeResult{}, &wire.ProtocolError{Reason: wire.ErrUnexpectedCommand, Command: frame.Command}
			}
			if _, err := tr.Write(wire.Encode(localVersion, wire.STLS, wire.VersionMin, 0, nil)); err != nil {
				return handshakeResult{}, ErrTransportClosed
			}
			if err := tr.UpgradeToTLS(ctx, tlsConfigFor(opts)); err != nil {
				return handshakeResult{}, err
			}
			state = stateWaitBanner
			continue

		case wire.AUTH:
			switch state {
			case stateWaitBanner, stateWaitBannerAfterSig:
				if frame.Arg0 != wire.AuthToken {
					return handshakeResult{}, &wire.ProtocolError{Reason: wire.ErrUnexpectedCommand, Command: frame.Command}
				}
				if tried < len(identities) {
					identity := identities[tried]
					tried++
					sig, err := identity.Sign(frame.Payload)
					if err != nil {
						return handshakeResult{}, err
					}
					if _, err := tr.Write(wire.Encode(localVersion, wire.AUTH, wire.AuthSignature, 0, sig)); err != nil {
						return handshakeResult{}, ErrTransportClosed
					}
					state = stateWaitBannerAfterSig
					continue
				}
				primary := opts.Identities.Primary()
				if primary == nil {
					return handshakeResult{}, ErrAuthenticationFailed
				}
				if _, err := tr.Write(wire.Encode(localVersion, wire.AUTH, wire.AuthRSAPublicKey, 0, primary.EncodedPublic())); err != nil {
					return handshakeResult{}, ErrTransportClosed
				}
				state = stateWaitUserAccept
				continue

			case stateWaitUserAccept:
				if opts.AssumePairingRequired {
					return handshakeResult{}, ErrPairingRequired
				}
				return handshakeResult{}, ErrAuthenticationFailed
			}

		default:
			return handshakeResult{}, &wire.ProtocolError{Reason: wire.ErrUnexpectedCommand, Command: frame.Command}
		}
	}
}

// tlsConfigFor builds the tls.Config used for the inline STLS upgrade.
// adbd's TLS certificates are not anchored to any public CA -- trust in
// this protocol comes from the RSA/pairing layer, not certificate
// validation -- so verification is skipped unless the caller supplied its
// own policy.
func tlsConfigFor(opts Options) *tls.Config {
	if opts.TLSConfig != nil {
		return opts.TLSConfig
	}
	return &tls.Config{InsecureSkipVerify: true}
}
