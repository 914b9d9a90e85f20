package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/btouchard/phasechime/internal/config"
)

var version = "dev"

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "phasechime: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "phasechime",
		Short: "Audible cues for agent session phases",
		Long: `phasechime watches the artifact metadata an editor agent writes under its
brain directory and plays a sound when a session starts, moves to
implementation, or finishes its walkthrough.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: search /etc/phasechime, ~/.config/phasechime, ./phasechime.yaml)")

	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newHookCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "phasechime %s\n", version)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
