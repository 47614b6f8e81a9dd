package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/iamvkosarev/hablaya/config"
	"github.com/iamvkosarev/hablaya/internal/session"
)

// filePlaceholder marks where the player command takes the audio path.
// Without it the path is appended.
const filePlaceholder = "{file}"

// Platform plays replies through an external command such as
// "mpv --no-video" or "afplay". A terminal has no microphone capture or
// native speech here; voice turns come from audio files.
type Platform struct {
	player   []string
	audioDir string
	logger   *slog.Logger
}

func NewPlatform(cfg config.Client, logger *slog.Logger) *Platform {
	if logger == nil {
		logger = slog.Default()
	}
	return &Platform{
		player:   strings.Fields(cfg.PlayerCommand),
		audioDir: cfg.AudioDir,
		logger:   logger,
	}
}

func (p *Platform) RequestMicrophone(context.Context) error {
	return session.ErrUnsupported
}

func (p *Platform) StartCapture(context.Context) error {
	return session.ErrUnsupported
}

func (p *Platform) StopCapture(context.Context) (session.Recording, error) {
	return session.Recording{}, session.ErrUnsupported
}

func (p *Platform) NativeTranscribe(context.Context, session.Recording) (session.Transcript, error) {
	return session.Transcript{}, session.ErrUnsupported
}

func (p *Platform) Speak(context.Context, string) (session.Playback, error) {
	return nil, session.ErrUnsupported
}

// Play saves the clip and starts the player without waiting for it. With no
// player configured the clip is only saved.
func (p *Platform) Play(_ context.Context, audio []byte) (session.Playback, error) {
	f, err := os.CreateTemp(p.audioDir, "hablaya-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}
	path := f.Name()
	if _, err = f.Write(audio); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}
	if err = f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close audio file: %w", err)
	}

	if len(p.player) == 0 {
		p.logger.Info("reply audio saved", slog.String("path", path))
		return savedClip{}, nil
	}

	args := playerArgs(p.player, path)
	// The clip outlives the turn, so it is not bound to the turn's context.
	cmd := exec.Command(args[0], args[1:]...)
	if err = cmd.Start(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to start player: %w", err)
	}
	clip := &playerClip{cmd: cmd, done: make(chan struct{})}
	go func() {
		if err := cmd.Wait(); err != nil && !clip.killed() {
			p.logger.Warn("player exited with error", slog.Any("error", err))
		}
		_ = os.Remove(path)
		close(clip.done)
	}()
	return clip, nil
}

func playerArgs(player []string, path string) []string {
	args := make([]string, 0, len(player)+1)
	substituted := false
	for _, arg := range player {
		if strings.Contains(arg, filePlaceholder) {
			arg = strings.ReplaceAll(arg, filePlaceholder, path)
			substituted = true
		}
		args = append(args, arg)
	}
	if !substituted {
		args = append(args, path)
	}
	return args
}

type savedClip struct{}

func (savedClip) Stop() {}

type playerClip struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	stopped bool
}

// Stop kills the player and waits for it to exit.
func (c *playerClip) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		_ = c.cmd.Process.Kill()
	}
	c.mu.Unlock()
	<-c.done
}

func (c *playerClip) killed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
