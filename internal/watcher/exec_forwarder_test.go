package watcher

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/phasechime/internal/dispatch"
	"github.com/btouchard/phasechime/internal/hook"
	"github.com/btouchard/phasechime/internal/notify"
	"github.com/btouchard/phasechime/internal/store"
	"github.com/btouchard/phasechime/internal/tracker"
)

// TestDispatcherHelperProcess is not a real test. It is the dispatcher
// process launched by the ExecForwarder tests: the test binary re-executed
// with "-- dispatch <state> <journal>" or "-- fail".
func TestDispatcherHelperProcess(t *testing.T) {
	args := flag.Args()
	if len(args) == 0 {
		return
	}

	switch args[0] {
	case "fail":
		fmt.Fprintln(os.Stderr, "dispatcher refused")
		os.Exit(3)
	case "dispatch":
		if len(args) != 3 {
			os.Exit(2)
		}
	default:
		return
	}

	ev, err := hook.Decode(os.Stdin)
	if err != nil {
		os.Exit(2)
	}
	journal, err := store.NewSQLiteStore(args[2])
	if err != nil {
		os.Exit(2)
	}
	d := dispatch.New(dispatch.NewStateFile(args[1]), notify.NewHub(), dispatch.WithJournal(journal))
	_, err = d.Dispatch(context.Background(), ev)
	_ = journal.Close()
	if err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func helperCommand(args ...string) []string {
	return append([]string{os.Args[0], "-test.run=^TestDispatcherHelperProcess$", "--"}, args...)
}

func TestExecForwarder_StopWithinWindow_SuppressedInEventOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	statePath := filepath.Join(root, "state", "state.json")
	dbPath := filepath.Join(root, "journal.db")

	fwd := &ExecForwarder{Command: helperCommand("dispatch", statePath, dbPath)}
	require.NoError(t, fwd.Check())

	w := New(Options{Root: filepath.Join(root, "brain")}, tracker.New(), fwd)
	ctx := context.Background()

	const sessions = 5
	for i := range sessions {
		id := fmt.Sprintf("G%07d", i)
		w.HandlePath(ctx, writeMetadata(t, root, id, "task.metadata", "ARTIFACT_TYPE_TASK"))
		w.HandlePath(ctx, writeMetadata(t, root, id, "walkthrough.metadata", "ARTIFACT_TYPE_WALKTHROUGH"))
	}

	journal, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = journal.Close() }()

	records, err := journal.ListNotifications(store.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2*sessions, "every forwarded event reaches the dispatcher before Forward returns")

	for _, r := range records {
		switch r.Kind {
		case string(hook.KindSessionStart):
			assert.True(t, r.Delivered, "SessionStart for %s", r.NotificationID)
		case string(hook.KindStop):
			assert.False(t, r.Delivered, "Stop for %s should be suppressed", r.NotificationID)
			assert.Equal(t, dispatch.ReasonSuppressed, r.Reason, "Stop for %s", r.NotificationID)
		default:
			t.Errorf("unexpected kind %q", r.Kind)
		}
	}
}

func TestExecForwarder_Forward_ReturnsDispatcherFailure(t *testing.T) {
	t.Parallel()

	fwd := &ExecForwarder{Command: helperCommand("fail")}
	err := fwd.Forward(context.Background(), hook.Event{Kind: hook.KindStop, SessionID: "G1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running dispatcher")
}

func TestExecForwarder_Forward_CancelledContextStillRuns(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	statePath := filepath.Join(root, "state.json")
	dbPath := filepath.Join(root, "journal.db")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fwd := &ExecForwarder{Command: helperCommand("dispatch", statePath, dbPath)}
	require.NoError(t, fwd.Forward(ctx, hook.Event{Kind: hook.KindSessionStart, SessionID: "G2"}))

	doc, err := dispatch.NewStateFile(statePath).Read()
	require.NoError(t, err)
	_, ok := doc.LastStart("G2")
	assert.True(t, ok)
}
