package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-adb/adbcore/adb/pairing"
	"github.com/go-adb/adbcore/cmd/adbctl/truststore"
)

var flagPairingCode string

var pairCmd = &cobra.Command{
	Use:   "pair <address>",
	Short: "Pair with a device over its wireless-debug pairing port",
	Args:  cobra.ExactArgs(1),
	RunE:  runPair,
}

func init() {
	pairCmd.Flags().StringVar(&flagPairingCode, "code", "", "six-digit pairing code shown on the device (required)")
}

func runPair(cmd *cobra.Command, args []string) error {
	if flagPairingCode == "" {
		return fmt.Errorf("--code is required")
	}
	cfg, err := LoadConfig(flagConfigPath)
	if err != nil {
		return err
	}
	addr := cfg.resolveAddress(args[0])

	identity, err := loadOrCreateIdentity(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	admin := newAdminServer()
	serveAdminIfConfigured(admin)

	session := &pairingState{
		SessionID: uuid.NewString(),
		Address:   addr,
		Status:    "waiting_code",
		StartedAt: time.Now(),
	}
	admin.track(session)

	log.Info().Str("session", session.SessionID).Str("address", addr).Msg("starting pairing")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		session.Status, session.Err = "failed", err.Error()
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	trusted, err := pairing.Pair(conn, flagPairingCode, identity)
	if err != nil {
		session.Status, session.Err = "failed", err.Error()
		return fmt.Errorf("pair: %w", err)
	}

	store, err := truststore.Open(cfg.TrustStorePath)
	if err != nil {
		return fmt.Errorf("open trust store: %w", err)
	}
	defer store.Close()

	if err := store.Put(truststore.Entry{
		Fingerprint: trusted.Fingerprint,
		PublicKey:   trusted.PublicKey,
		Label:       addr,
		PairedAt:    time.Now(),
	}); err != nil {
		return fmt.Errorf("persist pairing: %w", err)
	}

	session.Status = "succeeded"
	session.Fingerprint = trusted.Fingerprint

	log.Info().Str("fingerprint", trusted.Fingerprint).Msg("pairing succeeded")
	fmt.Println("paired:", trusted.Fingerprint)
	return nil
}
