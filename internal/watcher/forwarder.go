package watcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/btouchard/phasechime/internal/dispatch"
	"github.com/btouchard/phasechime/internal/hook"
)

// ErrDispatcherMissing is returned by preflight when events have nowhere to go.
var ErrDispatcherMissing = errors.New("dispatcher entry point not found")

// Forwarder hands lifecycle events to the dispatcher.
type Forwarder interface {
	// Check verifies the dispatcher can be reached.
	Check() error
	// Forward delivers one event and returns once the dispatcher has
	// decided its fate. It must not wait for the notification side effect.
	Forward(ctx context.Context, ev hook.Event) error
}

// DefaultForwardTimeout bounds one dispatcher process run.
const DefaultForwardTimeout = 10 * time.Second

// ExecForwarder runs one dispatcher process per event and writes the hook
// document to its stdin. Each process is waited for before Forward returns,
// so dispatches happen strictly in event order. The dispatcher itself
// detaches playback, so a run takes milliseconds.
type ExecForwarder struct {
	Command []string
	// Timeout bounds one run. Zero means DefaultForwardTimeout.
	Timeout time.Duration
}

// Check verifies the command exists and is executable.
func (f *ExecForwarder) Check() error {
	if len(f.Command) == 0 || f.Command[0] == "" {
		return fmt.Errorf("%w: no command configured", ErrDispatcherMissing)
	}
	if _, err := exec.LookPath(f.Command[0]); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDispatcherMissing, f.Command[0], err)
	}
	return nil
}

// Forward runs the dispatcher with ev on stdin and waits for it to exit.
func (f *ExecForwarder) Forward(ctx context.Context, ev hook.Event) error {
	if len(f.Command) == 0 {
		return fmt.Errorf("%w: no command configured", ErrDispatcherMissing)
	}

	payload, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encoding hook event: %w", err)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultForwardTimeout
	}
	// Detached from ctx cancellation: an in-flight dispatch finishes even if
	// the watcher stops.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, f.Command[0], f.Command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		slog.Debug("dispatcher exited with error",
			"kind", string(ev.Kind),
			"notification_id", ev.Key(),
			"stderr", strings.TrimSpace(stderr.String()),
			"error", err)
		return fmt.Errorf("running dispatcher: %w", err)
	}
	return nil
}

// Dispatcher is the in-process dispatch entry point.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev hook.Event) (dispatch.Decision, error)
}

// LocalForwarder dispatches in the watcher process itself.
type LocalForwarder struct {
	Dispatcher Dispatcher
}

// Check verifies a dispatcher is wired.
func (f *LocalForwarder) Check() error {
	if f.Dispatcher == nil {
		return fmt.Errorf("%w: in-process dispatcher not configured", ErrDispatcherMissing)
	}
	return nil
}

// Forward dispatches ev synchronously; playback itself stays detached.
func (f *LocalForwarder) Forward(ctx context.Context, ev hook.Event) error {
	_, err := f.Dispatcher.Dispatch(ctx, ev)
	return err
}
