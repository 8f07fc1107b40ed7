package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/config"
)

// runOptions holds the run flags. Only flags the user set override the
// configuration.
type runOptions struct {
	configPath string
	flags      *pflag.FlagSet
}

func runCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Verify the session and claim every claimable offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.flags = cmd.Flags()
			return executeRun(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to looter.toml (default: search upward from the working directory)")
	f.StringP("publishers", "p", "", "publisher allow-list file")
	f.StringP("cookies", "c", "", "Netscape cookie file")
	f.BoolP("loop", "l", false, "keep running and claim again every interval")
	f.Bool("no-headless", false, "show the browser window (browser backend)")
	f.BoolP("debug", "d", false, "debug logging")
	f.Bool("dump", false, "log the landing page markup before claiming (browser backend)")
	f.Bool("legacy", false, "claim through browser automation instead of the protocol backend")
	return cmd
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cfg *config.Config, f *pflag.FlagSet) {
	if f == nil {
		return
	}
	if f.Changed("publishers") {
		cfg.Session.PublishersFile, _ = f.GetString("publishers")
	}
	if f.Changed("cookies") {
		cfg.Session.CookieFile, _ = f.GetString("cookies")
	}
	if f.Changed("loop") {
		cfg.Run.Loop, _ = f.GetBool("loop")
	}
	if f.Changed("no-headless") {
		noHeadless, _ := f.GetBool("no-headless")
		cfg.Browser.Headless = !noHeadless
	}
	if f.Changed("debug") {
		cfg.Log.Debug, _ = f.GetBool("debug")
	}
	if f.Changed("dump") {
		cfg.Browser.Dump, _ = f.GetBool("dump")
	}
	if legacy, _ := f.GetBool("legacy"); legacy {
		cfg.Run.Backend = config.BackendBrowser
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last pass summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			return showStatus(cmd.OutOrStdout(), dir)
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold looter.toml, publishers.txt and .gitignore entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			created, err := config.ScaffoldProject(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(created) == 0 {
				fmt.Fprintln(out, "All files already exist — nothing to create.")
				return nil
			}
			for _, path := range created {
				fmt.Fprintf(out, "Created %s\n", path)
			}
			return nil
		},
	}
}
