// Package main is the entry point for the looter CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "looter",
		Short:        "LootKing — claims free games and in-game loot for a signed-in session",
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		runCmd(),
		statusCmd(),
		initCmd(),
	)

	return root
}

// signalContext returns a child of parent that is cancelled on SIGINT or
// SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
