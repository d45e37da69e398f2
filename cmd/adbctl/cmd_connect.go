package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-adb/adbcore/adb"
	"github.com/go-adb/adbcore/adb/keystore"
	"github.com/go-adb/adbcore/adb/transport"
)

var connectCmd = &cobra.Command{
	Use:   "connect <address>",
	Short: "Handshake with a device and print its banner",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(flagConfigPath)
	if err != nil {
		return err
	}
	addr := cfg.resolveAddress(args[0])

	identity, err := loadOrCreateIdentity(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := transport.DialTCP(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	opts := adb.NewOptions().
		WithIdentities(keystore.NewKeyStore(identity)).
		WithAssumePairingRequired(cfg.AssumePairingRequired)

	conn, err := adb.Connect(ctx, tr, opts)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	log.Info().
		Str("address", addr).
		Uint32("version", conn.ActiveVersion()).
		Uint32("max_data", conn.ActiveMaxData()).
		Str("banner", string(conn.Banner())).
		Msg("connected")

	fmt.Println(string(conn.Banner()))
	return nil
}
