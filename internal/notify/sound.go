package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/btouchard/phasechime/internal/hook"
)

// fileArg marks where the asset path goes in a configured player command.
const fileArg = "{file}"

// knownPlayers are tried in order when no player is configured.
var knownPlayers = [][]string{
	{"afplay"},
	{"paplay"},
	{"pw-play"},
	{"aplay", "-q"},
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
}

// ErrNoPlayer is returned when no audio player can be found.
var ErrNoPlayer = errors.New("no audio player found")

// SoundNotifier plays one asset per event kind through an external player.
// Playback runs in its own process session so it outlives a short-lived
// hook process.
type SoundNotifier struct {
	player   string
	assets   map[hook.Kind]string
	lookPath func(string) (string, error)
}

// NewSoundNotifier creates a SoundNotifier. An empty player selects the
// first available entry of knownPlayers at play time.
func NewSoundNotifier(player string, assets map[hook.Kind]string) *SoundNotifier {
	return &SoundNotifier{
		player:   player,
		assets:   assets,
		lookPath: exec.LookPath,
	}
}

// Notify starts playback for the event and returns without waiting.
// Failures are logged and swallowed.
func (s *SoundNotifier) Notify(event hook.Event) {
	path := s.assets[event.Kind]
	if path == "" {
		slog.Debug("no sound configured", "kind", string(event.Kind))
		return
	}
	if _, err := os.Stat(path); err != nil {
		slog.Debug("sound asset unavailable", "kind", string(event.Kind), "path", path, "error", err)
		return
	}

	argv, err := s.command(path)
	if err != nil {
		slog.Debug("cannot play sound", "kind", string(event.Kind), "error", err)
		return
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		slog.Debug("starting player failed", "player", argv[0], "error", err)
		return
	}

	slog.Debug("sound started",
		"kind", string(event.Kind),
		"notification_id", event.Key(),
		"pid", cmd.Process.Pid)

	go func() { _ = cmd.Wait() }()
}

// command builds the player invocation for the asset at path.
func (s *SoundNotifier) command(path string) ([]string, error) {
	if s.player != "" {
		fields := strings.Fields(s.player)
		argv := make([]string, 0, len(fields)+1)
		substituted := false
		for _, f := range fields {
			if f == fileArg {
				f = path
				substituted = true
			}
			argv = append(argv, f)
		}
		if !substituted {
			argv = append(argv, path)
		}
		return argv, nil
	}

	for _, p := range knownPlayers {
		if _, err := s.lookPath(p[0]); err == nil {
			argv := append([]string{}, p...)
			return append(argv, path), nil
		}
	}
	return nil, fmt.Errorf("%w (tried afplay, paplay, pw-play, aplay, ffplay)", ErrNoPlayer)
}
