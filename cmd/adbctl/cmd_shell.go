package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-adb/adbcore/adb"
	"github.com/go-adb/adbcore/adb/keystore"
	"github.com/go-adb/adbcore/adb/transport"
)

var shellCmd = &cobra.Command{
	Use:   "shell <address> [command...]",
	Short: "Open a shell stream and bridge it to stdio",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(flagConfigPath)
	if err != nil {
		return err
	}
	addr := cfg.resolveAddress(args[0])
	shellLine := strings.Join(args[1:], " ")

	identity, err := loadOrCreateIdentity(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin := newAdminServer()
	serveAdminIfConfigured(admin)

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

	destination := "shell:" + shellLine
	stream, err := conn.Open(ctx, destination)
	if err != nil {
		return fmt.Errorf("open %q: %w", destination, err)
	}
	defer stream.Close()

	log.Debug().Str("destination", destination).Msg("shell stream open")

	done := make(chan struct{})
	go func() {
		io.Copy(os.Stdout, stream)
		close(done)
	}()
	go func() {
		io.Copy(stream, os.Stdin)
		stream.Close()
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}
