// Command adbctl is a small host-side ADB client: it pairs with a
// wireless-debug device, opens a shell, or simply checks connectivity,
// driving the core adb package the way a real adb client would.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagLogLevel   string
	flagAdminAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "adbctl",
	Short: "Host-side ADB wire-protocol client",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(flagLogLevel)
		if err != nil {
			return err
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigPath, "config", "", "path to adbctl YAML config (optional)")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flags.StringVar(&flagAdminAddr, "admin", "", "address for the /healthz and /pairings admin API (disabled if empty)")

	rootCmd.AddCommand(connectCmd, shellCmd, pairCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("adbctl")
	}
}

func serveAdminIfConfigured(admin *adminServer) {
	if flagAdminAddr == "" {
		return
	}
	go func() {
		log.Info().Str("addr", flagAdminAddr).Msg("admin API listening")
		if err := httpListenAndServe(flagAdminAddr, admin.router()); err != nil {
			log.Error().Err(err).Msg("admin API stopped")
		}
	}()
}
