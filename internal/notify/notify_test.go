package notify

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/phasechime/internal/hook"
)

type recordingSender struct {
	mu     sync.Mutex
	method string
	params []map[string]any
}

func (r *recordingSender) SendNotificationToAllClients(method string, params map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.method = method
	r.params = append(r.params, params)
}

func TestHub_NotifiesAllInOrder(t *testing.T) {
	t.Parallel()

	var got []string
	hub := NewHub(
		NotifierFunc(func(e hook.Event) { got = append(got, "a:"+string(e.Kind)) }),
		nil,
		NotifierFunc(func(e hook.Event) { got = append(got, "b:"+string(e.Kind)) }),
	)

	hub.Notify(hook.Event{Kind: hook.KindStop})

	assert.Equal(t, []string{"a:Stop", "b:Stop"}, got)
}

func TestHub_WhenNotifierPanics_ContinuesWithOthers(t *testing.T) {
	t.Parallel()

	called := false
	hub := NewHub(
		NotifierFunc(func(hook.Event) { panic("boom") }),
	)
	hub.Add(NotifierFunc(func(hook.Event) { called = true }))

	require.NotPanics(t, func() {
		hub.Notify(hook.Event{Kind: hook.KindSessionStart})
	})
	assert.True(t, called)
}

func TestMCPNotifier_BroadcastsMessage(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	n := NewMCPNotifier(sender)

	n.Notify(hook.Event{Kind: hook.KindPromptSubmit, SessionID: "3f2b9c1e", Cwd: "/b/brain/3f2b9c1e"})

	require.Len(t, sender.params, 1)
	assert.Equal(t, "notifications/message", sender.method)
	data := sender.params[0]["data"].(map[string]any)
	assert.Equal(t, "UserPromptSubmit", data["kind"])
	assert.Equal(t, "3f2b9c1e", data["notification_id"])
}

func TestSoundNotifier_Command_UsesConfiguredPlayer(t *testing.T) {
	t.Parallel()

	s := NewSoundNotifier("mpv --really-quiet", nil)
	argv, err := s.command("/s/start.wav")
	require.NoError(t, err)
	assert.Equal(t, []string{"mpv", "--really-quiet", "/s/start.wav"}, argv)

	s = NewSoundNotifier("play {file} vol 0.5", nil)
	argv, err = s.command("/s/start.wav")
	require.NoError(t, err)
	assert.Equal(t, []string{"play", "/s/start.wav", "vol", "0.5"}, argv)
}

func TestSoundNotifier_Command_DetectsPlayer(t *testing.T) {
	t.Parallel()

	s := NewSoundNotifier("", nil)
	s.lookPath = func(name string) (string, error) {
		if name == "aplay" {
			return "/usr/bin/aplay", nil
		}
		return "", errors.New("not found")
	}

	argv, err := s.command("/s/stop.wav")
	require.NoError(t, err)
	assert.Equal(t, []string{"aplay", "-q", "/s/stop.wav"}, argv)
}

func TestSoundNotifier_Command_WhenNoPlayer_ReturnsError(t *testing.T) {
	t.Parallel()

	s := NewSoundNotifier("", nil)
	s.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := s.command("/s/stop.wav")
	require.ErrorIs(t, err, ErrNoPlayer)
}

func TestSoundNotifier_Notify_WhenAssetMissing_DoesNothing(t *testing.T) {
	t.Parallel()

	s := NewSoundNotifier("definitely-not-a-player", map[hook.Kind]string{
		hook.KindStop: filepath.Join(t.TempDir(), "missing.wav"),
	})

	require.NotPanics(t, func() {
		s.Notify(hook.Event{Kind: hook.KindStop})
		s.Notify(hook.Event{Kind: hook.KindSessionStart})
	})
}

func TestSoundNotifier_Notify_WhenPlayerMissing_DoesNotPanic(t *testing.T) {
	t.Parallel()

	asset := filepath.Join(t.TempDir(), "stop.wav")
	require.NoError(t, os.WriteFile(asset, []byte("RIFF"), 0600))

	s := NewSoundNotifier("/nonexistent/player-binary", map[hook.Kind]string{hook.KindStop: asset})

	require.NotPanics(t, func() {
		s.Notify(hook.Event{Kind: hook.KindStop})
	})
}
