package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/phasechime/internal/artifact"
	"github.com/btouchard/phasechime/internal/dispatch"
	"github.com/btouchard/phasechime/internal/hook"
	"github.com/btouchard/phasechime/internal/tracker"
)

type recordingForwarder struct {
	mu     sync.Mutex
	events []hook.Event
	err    error
}

func (r *recordingForwarder) Check() error { return r.err }

func (r *recordingForwarder) Forward(_ context.Context, ev hook.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingForwarder) Events() []hook.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hook.Event(nil), r.events...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []hook.Event
}

func (r *recordingNotifier) Notify(e hook.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) Kinds() []hook.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]hook.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func writeMetadata(t *testing.T, root, session, name, artifactType string) string {
	t.Helper()
	dir := filepath.Join(root, "brain", session)
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	body := `{"artifactType":"` + artifactType + `","summary":"s"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func newRecordingWatcher(t *testing.T) (*Watcher, *recordingForwarder, string) {
	t.Helper()
	root := t.TempDir()
	fwd := &recordingForwarder{}
	w := New(Options{Root: filepath.Join(root, "brain")}, tracker.New(), fwd)
	return w, fwd, root
}

// endToEnd wires the watcher to a real dispatcher in-process.
func endToEnd(t *testing.T) (*Watcher, *fakeClock, *recordingNotifier, string) {
	t.Helper()
	root := t.TempDir()
	clock := &fakeClock{now: time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)}
	rec := &recordingNotifier{}
	state := dispatch.NewStateFile(filepath.Join(root, "state", "state.json"))
	d := dispatch.New(state, rec, dispatch.WithClock(clock.Now))
	w := New(Options{Root: filepath.Join(root, "brain")}, tracker.New(), &LocalForwarder{Dispatcher: d})
	return w, clock, rec, root
}

func TestHandlePath_TaskMetadata_ForwardsSessionStart(t *testing.T) {
	t.Parallel()
	w, fwd, root := newRecordingWatcher(t)

	path := writeMetadata(t, root, "G1", "task.metadata", "ARTIFACT_TYPE_TASK")
	tr, ok := w.HandlePath(context.Background(), path)
	require.True(t, ok)
	assert.Equal(t, hook.KindSessionStart, tr.Kind)
	assert.Equal(t, "G1", tr.SessionID)

	events := fwd.Events()
	require.Len(t, events, 1)
	assert.Equal(t, hook.KindSessionStart, events[0].Kind)
	assert.Equal(t, "G1", events[0].SessionID)
	assert.Equal(t, filepath.Join(root, "brain", "G1"), events[0].Cwd)
}

func TestHandlePath_SamePathTwice_ForwardsOnce(t *testing.T) {
	t.Parallel()
	w, fwd, root := newRecordingWatcher(t)
	ctx := context.Background()

	path := writeMetadata(t, root, "G4", "task.metadata", "ARTIFACT_TYPE_TASK")
	_, ok := w.HandlePath(ctx, path)
	assert.True(t, ok)
	_, ok = w.HandlePath(ctx, path)
	assert.False(t, ok)

	assert.Len(t, fwd.Events(), 1)
}

func TestHandlePath_LongSessionID_TruncatesNotificationID(t *testing.T) {
	t.Parallel()
	w, fwd, root := newRecordingWatcher(t)

	id := "0b6d3f1e-8c8a-4a7e-9f51-1c2d3e4f5a6b"
	path := writeMetadata(t, root, id, "task.md.metadata.json", "ARTIFACT_TYPE_TASK")
	_, ok := w.HandlePath(context.Background(), path)
	require.True(t, ok)

	events := fwd.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "0b6d3f1e", events[0].SessionID)
}

func TestHandlePath_IgnoresNonMetadataAndUnknownPhases(t *testing.T) {
	t.Parallel()
	w, fwd, root := newRecordingWatcher(t)
	ctx := context.Background()

	other := writeMetadata(t, root, "G5", "notes.txt", "ARTIFACT_TYPE_TASK")
	_, ok := w.HandlePath(ctx, other)
	assert.False(t, ok)

	unknown := writeMetadata(t, root, "G5", "other.metadata", "ARTIFACT_TYPE_OTHER")
	_, ok = w.HandlePath(ctx, unknown)
	assert.False(t, ok)

	corrupt := filepath.Join(root, "brain", "G5", "broken.metadata.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{nope"), 0644))
	_, ok = w.HandlePath(ctx, corrupt)
	assert.False(t, ok)

	_, ok = w.HandlePath(ctx, filepath.Join(root, "brain", "G5", "missing.metadata"))
	assert.False(t, ok)

	assert.Empty(t, fwd.Events())
}

func TestHandlePath_OutsideSessionDir_Ignored(t *testing.T) {
	t.Parallel()
	w, fwd, root := newRecordingWatcher(t)

	path := filepath.Join(root, "task.metadata")
	require.NoError(t, os.WriteFile(path, []byte(`{"artifactType":"ARTIFACT_TYPE_TASK"}`), 0644))

	_, ok := w.HandlePath(context.Background(), path)
	assert.False(t, ok)
	assert.Empty(t, fwd.Events())
}

func TestEndToEnd_SingleTask_DeliversSessionStart(t *testing.T) {
	t.Parallel()
	w, _, rec, root := endToEnd(t)

	w.HandlePath(context.Background(), writeMetadata(t, root, "G1", "task.metadata", "ARTIFACT_TYPE_TASK"))

	assert.Equal(t, []hook.Kind{hook.KindSessionStart}, rec.Kinds())
}

func TestEndToEnd_StopWithinWindow_Suppressed(t *testing.T) {
	t.Parallel()
	w, _, rec, root := endToEnd(t)
	ctx := context.Background()

	w.HandlePath(ctx, writeMetadata(t, root, "G2", "task.metadata", "ARTIFACT_TYPE_TASK"))
	tr, ok := w.HandlePath(ctx, writeMetadata(t, root, "G2", "walkthrough.metadata", "ARTIFACT_TYPE_WALKTHROUGH"))
	require.True(t, ok)
	assert.Equal(t, hook.KindStop, tr.Kind)

	assert.Equal(t, []hook.Kind{hook.KindSessionStart}, rec.Kinds())
}

func TestEndToEnd_StopAfterWindow_Delivered(t *testing.T) {
	t.Parallel()
	w, clock, rec, root := endToEnd(t)
	ctx := context.Background()

	w.HandlePath(ctx, writeMetadata(t, root, "G3", "task.metadata", "ARTIFACT_TYPE_TASK"))
	clock.Advance(dispatch.DefaultWindow + time.Second)
	w.HandlePath(ctx, writeMetadata(t, root, "G3", "walkthrough.metadata", "ARTIFACT_TYPE_WALKTHROUGH"))

	assert.Equal(t, []hook.Kind{hook.KindSessionStart, hook.KindStop}, rec.Kinds())
}

func TestEndToEnd_DuplicatePath_DeliversOnce(t *testing.T) {
	t.Parallel()
	w, _, rec, root := endToEnd(t)
	ctx := context.Background()

	path := writeMetadata(t, root, "G4", "task.metadata", "ARTIFACT_TYPE_TASK")
	w.HandlePath(ctx, path)
	w.HandlePath(ctx, path)

	assert.Equal(t, []hook.Kind{hook.KindSessionStart}, rec.Kinds())
}

func TestRun_ObservesFilesInNewSessionDirectories(t *testing.T) {
	t.Parallel()
	w, fwd, root := newRecordingWatcher(t)
	require.NoError(t, w.Preflight())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Root is created by Run; wait for it before writing below it.
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(root, "brain"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	writeMetadata(t, root, "G7", "task.metadata", "ARTIFACT_TYPE_TASK")

	require.Eventually(t, func() bool {
		return len(fwd.Events()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}

	events := fwd.Events()
	assert.Equal(t, hook.KindSessionStart, events[0].Kind)
	assert.Equal(t, "G7", events[0].SessionID)
}

func TestRun_ExistingFilesNotReplayed(t *testing.T) {
	t.Parallel()
	w, fwd, root := newRecordingWatcher(t)
	writeMetadata(t, root, "G8", "task.metadata", "ARTIFACT_TYPE_TASK")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Run(ctx))

	assert.Empty(t, fwd.Events())
}

func TestPreflight_ForwarderCheckFails_ReturnsError(t *testing.T) {
	t.Parallel()
	w := New(Options{Root: t.TempDir()}, tracker.New(), &ExecForwarder{
		Command: []string{"phasechime-definitely-not-installed"},
	})

	err := w.Preflight()
	require.ErrorIs(t, err, ErrDispatcherMissing)
	assert.Contains(t, err.Error(), "dispatcher entry point not found")
}

func TestPreflight_NoForwarder_ReturnsError(t *testing.T) {
	t.Parallel()
	w := New(Options{Root: t.TempDir()}, tracker.New(), nil)
	require.ErrorIs(t, w.Preflight(), ErrDispatcherMissing)
}

func TestLocalForwarder_NilDispatcher_FailsCheck(t *testing.T) {
	t.Parallel()
	require.ErrorIs(t, (&LocalForwarder{}).Check(), ErrDispatcherMissing)
}

func TestExecForwarder_EmptyCommand_FailsCheck(t *testing.T) {
	t.Parallel()
	f := &ExecForwarder{}
	require.ErrorIs(t, f.Check(), ErrDispatcherMissing)
	require.ErrorIs(t, f.Forward(context.Background(), hook.Event{Kind: hook.KindStop}), ErrDispatcherMissing)
}

func TestNew_DefaultsSuffixes(t *testing.T) {
	t.Parallel()
	w := New(Options{Root: "/x"}, tracker.New(), &recordingForwarder{})
	assert.Equal(t, artifact.DefaultSuffixes, w.suffixes)
}
