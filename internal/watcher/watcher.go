// Package watcher bridges filesystem events under the agent's brain
// directory to the phase tracker and the dispatcher.
//
// Events are handled one at a time in the order fsnotify reports them:
// read the metadata file, parse its phase, resolve its session, feed the
// tracker, and forward any resulting lifecycle event before looking at the
// next filesystem event.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/btouchard/phasechime/internal/artifact"
	"github.com/btouchard/phasechime/internal/hook"
	"github.com/btouchard/phasechime/internal/tracker"
)

// ErrNoWatchMechanism is returned by preflight when the host offers no
// filesystem notification facility.
var ErrNoWatchMechanism = errors.New("no filesystem watch mechanism available")

// maxMetadataBytes caps how much of a metadata file is read.
const maxMetadataBytes = 1 << 20

// Options configures a Watcher.
type Options struct {
	Root          string
	Resolver      artifact.Resolver
	Suffixes      []string
	SweepInterval time.Duration
}

// Watcher feeds metadata file changes through the tracker to a Forwarder.
type Watcher struct {
	root          string
	resolver      artifact.Resolver
	suffixes      []string
	sweepInterval time.Duration

	tracker   *tracker.Tracker
	forwarder Forwarder
	fs        *fsnotify.Watcher
}

// New creates a Watcher. Call Preflight before Run.
func New(opts Options, tr *tracker.Tracker, fwd Forwarder) *Watcher {
	suffixes := opts.Suffixes
	if len(suffixes) == 0 {
		suffixes = artifact.DefaultSuffixes
	}
	return &Watcher{
		root:          opts.Root,
		resolver:      opts.Resolver,
		suffixes:      suffixes,
		sweepInterval: opts.SweepInterval,
		tracker:       tr,
		forwarder:     fwd,
	}
}

// Preflight verifies the dispatcher is reachable and opens the filesystem
// notification source. Either failure is fatal for the caller.
func (w *Watcher) Preflight() error {
	if w.forwarder == nil {
		return fmt.Errorf("%w: no forwarder configured", ErrDispatcherMissing)
	}
	if err := w.forwarder.Check(); err != nil {
		return err
	}

	if w.fs != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoWatchMechanism, err)
	}
	w.fs = fsw
	return nil
}

// Close releases the filesystem notification source.
func (w *Watcher) Close() error {
	if w.fs == nil {
		return nil
	}
	err := w.fs.Close()
	w.fs = nil
	return err
}

// Run watches the root until ctx is cancelled. The notification source is
// closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	if w.fs == nil {
		if err := w.Preflight(); err != nil {
			return err
		}
	}
	defer func() { _ = w.Close() }()

	if err := os.MkdirAll(w.root, 0755); err != nil {
		return fmt.Errorf("creating watch root: %w", err)
	}
	if err := w.addTree(ctx, w.root, false); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}

	slog.Info("watching for artifact changes", "root", w.root)

	var sweep <-chan time.Time
	if w.sweepInterval > 0 {
		ticker := time.NewTicker(w.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	events := w.fs.Events
	errs := w.fs.Errors
	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher stopping")
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			slog.Warn("filesystem watch error", "error", err)

		case <-sweep:
			if n := w.tracker.Sweep(); n > 0 {
				slog.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// Files may land before the watch is in place; pick them up.
			if err := w.addTree(ctx, ev.Name, true); err != nil {
				slog.Debug("cannot watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}

	w.HandlePath(ctx, ev.Name)
}

// addTree watches dir and every directory below it. With process set,
// metadata files already present are handled as if just created.
func (w *Watcher) addTree(ctx context.Context, dir string, process bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // Skip errors, continue walking
		}
		if d.IsDir() {
			if err := w.fs.Add(path); err != nil {
				slog.Debug("cannot watch directory", "path", path, "error", err)
			}
			return nil
		}
		if process {
			w.HandlePath(ctx, path)
		}
		return nil
	})
}

// HandlePath runs one changed file through parser, resolver and tracker,
// and forwards the resulting event. It reports the transition, if any.
// Files that are not metadata, cannot be read, carry no recognized phase
// or sit outside a session directory are dropped.
func (w *Watcher) HandlePath(ctx context.Context, path string) (tracker.Transition, bool) {
	if !artifact.IsMetadataFile(path, w.suffixes) {
		return tracker.Transition{}, false
	}

	sessionID, ok := w.resolver.Resolve(path)
	if !ok {
		slog.Debug("no session for path", "path", path)
		return tracker.Transition{}, false
	}

	data, err := readLimited(path)
	if err != nil {
		slog.Debug("cannot read metadata", "path", path, "error", err)
		return tracker.Transition{}, false
	}

	phase, ok := artifact.ParsePhase(data)
	if !ok {
		slog.Debug("unrecognized metadata", "path", path, "session_id", sessionID)
		return tracker.Transition{}, false
	}

	tr, ok := w.tracker.Observe(sessionID, phase)
	if !ok {
		return tracker.Transition{}, false
	}

	ev := hook.Event{
		Kind:      tr.Kind,
		Cwd:       w.resolver.SessionDir(path),
		SessionID: tr.NotificationID,
	}

	slog.Info("artifact phase changed",
		"session_id", sessionID,
		"phase", string(phase),
		"kind", string(tr.Kind))

	if err := w.forwarder.Forward(ctx, ev); err != nil {
		slog.Warn("forwarding event failed",
			"kind", string(ev.Kind),
			"notification_id", ev.SessionID,
			"error", err)
	}
	return tr, true
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the watched tree
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxMetadataBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxMetadataBytes {
		return nil, fmt.Errorf("metadata file larger than %d bytes", maxMetadataBytes)
	}
	return data, nil
}
