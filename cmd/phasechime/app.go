package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/btouchard/phasechime/internal/config"
	"github.com/btouchard/phasechime/internal/dispatch"
	"github.com/btouchard/phasechime/internal/notify"
	"github.com/btouchard/phasechime/internal/store"
)

// cleanupInterval is how often the journal drops expired rows while watching.
const cleanupInterval = time.Hour

// openJournal opens the notification journal. It returns nil when the
// journal is disabled or cannot be opened; dispatching works without it.
func openJournal(cfg *config.Config) *store.SQLiteStore {
	if !cfg.Database.Enabled || cfg.Database.Path == "" {
		return nil
	}
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		slog.Warn("notification journal unavailable", "path", cfg.Database.Path, "error", err)
		return nil
	}
	slog.Debug("database opened", "path", cfg.Database.Path)
	return db
}

// newDispatcher builds the dispatcher with the sound notifier, when
// enabled, plus any extra notifiers.
func newDispatcher(cfg *config.Config, journal *store.SQLiteStore, extra ...notify.Notifier) *dispatch.Dispatcher {
	hub := notify.NewHub(extra...)
	if cfg.Sound.Enabled {
		hub.Add(notify.NewSoundNotifier(cfg.Sound.Player, cfg.SoundAssets()))
	}

	opts := []dispatch.Option{
		dispatch.WithWindow(cfg.Dispatch.SuppressionWindow),
		dispatch.WithRetention(cfg.Dispatch.Retention),
	}
	if journal != nil {
		opts = append(opts, dispatch.WithJournal(journal))
	}

	return dispatch.New(dispatch.NewStateFile(cfg.Dispatch.StateFile), hub, opts...)
}

// runJournalCleanup drops journal rows older than the configured
// retention until ctx is cancelled.
func runJournalCleanup(ctx context.Context, journal store.Store, retentionDays int) error {
	if journal == nil || retentionDays <= 0 {
		return nil
	}
	retention := time.Duration(retentionDays) * 24 * time.Hour

	cleanup := func() {
		n, err := journal.Cleanup(time.Now().Add(-retention))
		if err != nil {
			slog.Warn("journal cleanup failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("journal cleanup", "deleted", n)
		}
	}

	cleanup()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cleanup()
		}
	}
}

func describeForwarder(inProcess bool, command []string) string {
	if inProcess {
		return "in-process"
	}
	return fmt.Sprintf("%q", command)
}
