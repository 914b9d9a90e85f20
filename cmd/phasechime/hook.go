package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/btouchard/phasechime/internal/config"
	"github.com/btouchard/phasechime/internal/hook"
)

// hookTimeout bounds one dispatch, lock waits included.
const hookTimeout = 10 * time.Second

// newHookCmd handles one lifecycle event read from stdin. It exits 0 even
// when the event is malformed or dispatch fails, so a broken setup never
// blocks the caller.
func newHookCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hook",
		Short: "Dispatch one hook event read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				cfg = config.Defaults()
				closeLog := setupLogging(cfg.Log, cmd.ErrOrStderr())
				defer closeLog()
				slog.Error("failed to load configuration", "error", err)
				return nil
			}

			closeLog := setupLogging(cfg.Log, cmd.ErrOrStderr())
			defer closeLog()

			ctx, cancel := context.WithTimeout(cmd.Context(), hookTimeout)
			defer cancel()

			runHook(ctx, cfg, cmd.InOrStdin())
			return nil
		},
	}
}

func runHook(ctx context.Context, cfg *config.Config, stdin io.Reader) {
	ev, err := hook.Decode(stdin)
	if err != nil {
		slog.Error("invalid hook event", "error", err)
		return
	}

	journal := openJournal(cfg)
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	d := newDispatcher(cfg, journal)
	if _, err := d.Dispatch(ctx, ev); err != nil {
		slog.Error("dispatch failed",
			"kind", string(ev.Kind),
			"notification_id", ev.Key(),
			"error", err)
	}
}
