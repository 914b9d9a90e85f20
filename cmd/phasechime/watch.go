package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/btouchard/phasechime/internal/artifact"
	"github.com/btouchard/phasechime/internal/config"
	"github.com/btouchard/phasechime/internal/mcp/handlers"
	"github.com/btouchard/phasechime/internal/notify"
	"github.com/btouchard/phasechime/internal/server"
	"github.com/btouchard/phasechime/internal/tracker"
	"github.com/btouchard/phasechime/internal/watcher"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the brain directory and dispatch lifecycle events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			closeLog := setupLogging(cfg.Log, cmd.ErrOrStderr())
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runWatch(ctx, cfg, opts.configPath)
		},
	}
}

// dispatcherCommand returns the command the watcher launches per event.
func dispatcherCommand(cfg *config.Config, configPath string) ([]string, error) {
	if len(cfg.Watch.Dispatcher) > 0 {
		return cfg.Watch.Dispatcher, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", watcher.ErrDispatcherMissing, err)
	}
	command := []string{exe, "hook"}
	if configPath != "" {
		command = append(command, "--config", configPath)
	}
	return command, nil
}

func runWatch(ctx context.Context, cfg *config.Config, configPath string) error {
	var trackerOpts []tracker.Option
	if cfg.Watch.SessionTTL > 0 {
		trackerOpts = append(trackerOpts, tracker.WithIdleTTL(cfg.Watch.SessionTTL))
	}
	if cfg.Watch.EvictOnStop {
		trackerOpts = append(trackerOpts, tracker.WithEvictOnStop())
	}
	tr := tracker.New(trackerOpts...)

	journal := openJournal(cfg)
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		var lister handlers.NotificationLister
		if journal != nil {
			lister = journal
		}
		srv = server.New(server.Config{
			Host:  cfg.Server.Host,
			Port:  cfg.Server.Port,
			Token: cfg.Server.Token,
		}, tr, lister, version)
	}

	var fwd watcher.Forwarder
	var command []string
	if cfg.Watch.InProcess {
		var extra []notify.Notifier
		if srv != nil {
			extra = append(extra, notify.NewMCPNotifier(srv.MCP()))
		}
		fwd = &watcher.LocalForwarder{Dispatcher: newDispatcher(cfg, journal, extra...)}
	} else {
		var err error
		command, err = dispatcherCommand(cfg, configPath)
		if err != nil {
			return err
		}
		fwd = &watcher.ExecForwarder{Command: command, Timeout: hookTimeout + 5*time.Second}
	}

	w := watcher.New(watcher.Options{
		Root: cfg.Watch.Root,
		Resolver: artifact.Resolver{
			Marker:      cfg.Watch.Marker,
			RequireGUID: cfg.Watch.RequireGUID,
		},
		Suffixes:      cfg.Watch.Suffixes,
		SweepInterval: cfg.Watch.SweepInterval,
	}, tr, fwd)

	if err := w.Preflight(); err != nil {
		return err
	}

	slog.Info("starting phasechime",
		"version", version,
		"root", cfg.Watch.Root,
		"dispatcher", describeForwarder(cfg.Watch.InProcess, command))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	if srv != nil {
		g.Go(func() error { return srv.Run(gctx) })
	}
	if journal != nil {
		g.Go(func() error { return runJournalCleanup(gctx, journal, cfg.Database.RetentionDays) })
	}

	return g.Wait()
}
