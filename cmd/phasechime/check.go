package main

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/btouchard/phasechime/internal/watcher"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and the host environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration is valid")
			fmt.Fprintf(out, "watch root: %s\n", cfg.Watch.Root)
			fmt.Fprintf(out, "state file: %s\n", cfg.Dispatch.StateFile)

			fsw, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("%w: %w", watcher.ErrNoWatchMechanism, err)
			}
			_ = fsw.Close()
			fmt.Fprintln(out, "filesystem watching: ok")

			if !cfg.Watch.InProcess {
				command, err := dispatcherCommand(cfg, opts.configPath)
				if err != nil {
					return err
				}
				if err := (&watcher.ExecForwarder{Command: command}).Check(); err != nil {
					return err
				}
				fmt.Fprintf(out, "dispatcher: %s\n", describeForwarder(false, command))
			}

			return nil
		},
	}
}
