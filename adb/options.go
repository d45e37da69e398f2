package adb

import (
	"crypto/tls"
	"time"

	"github.com/go-adb/adbcore/adb/keystore"
	"github.com/go-adb/adbcore/adb/wire"
)

// TLSPolicy controls whether Connect upgrades to TLS when the daemon
// offers STLS (spec.md §6 "tls").
type TLSPolicy int

const (
	TLSPreferIfOffered TLSPolicy = iota
	TLSForbid
)

// Options is the struct-shaped configuration surface spec.md §6
// describes; it is never positional. NewOptions returns the documented
// defaults, and With* helpers return a modified copy for call-site
// ergonomics, the same construct-then-adjust shape cmd/portal-tunnel's
// TunnelConfig uses for its own settings.
type Options struct {
	AdvertisedVersion uint32
	AdvertisedMaxData uint32
	SystemBanner      string
	Identities        *keystore.KeyStore
	TLS               TLSPolicy
	TLSConfig         *tls.Config
	HandshakeDeadline time.Duration

	// AssumePairingRequired resolves the ambiguity spec.md §9 leaves to
	// caller policy: a re-issued AUTH(TOKEN) after we sent RSAPUBLICKEY
	// means either the user declined our key (AuthenticationFailed) or
	// the daemon is in wireless-debug mode and expects pairing first
	// (PairingRequired). The wire gives no distinct signal either way.
	AssumePairingRequired bool
}

// NewOptions returns the default configuration: V_SKIP_CHECKSUM, a 1 MiB
// max_data, the standard "host::" banner, no identities, TLS preferred
// when offered, and a 10 second handshake deadline.
func NewOptions() Options {
	return Options{
		AdvertisedVersion: wire.VersionSkipChecksum,
		AdvertisedMaxData: 1 << 20,
		SystemBanner:      "host::\x00",
		TLS:               TLSPreferIfOffered,
		HandshakeDeadline: 10 * time.Second,
	}
}

func (o Options) WithIdentities(ks *keystore.KeyStore) Options {
	o.Identities = ks
	return o
}

func (o Options) WithAdvertisedVersion(v uint32) Options {
	o.AdvertisedVersion = v
	return o
}

func (o Options) WithAdvertisedMaxData(n uint32) Options {
	o.AdvertisedMaxData = n
	return o
}

func (o Options) WithSystemBanner(banner string) Options {
	o.SystemBanner = banner
	return o
}

func (o Options) WithTLSPolicy(p TLSPolicy) Options {
	o.TLS = p
	return o
}

func (o Options) WithHandshakeDeadline(d time.Duration) Options {
	o.HandshakeDeadline = d
	return o
}

func (o Options) WithTLSConfig(cfg *tls.Config) Options {
	o.TLSConfig = cfg
	return o
}

func (o Options) WithAssumePairingRequired(v bool) Options {
	o.AssumePairingRequired = v
	return o
}
