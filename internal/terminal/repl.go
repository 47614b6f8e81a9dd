package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/iamvkosarev/hablaya/internal/session"
	"github.com/iamvkosarev/hablaya/internal/usecase"
	"github.com/iamvkosarev/hablaya/pkg/proficiency"
	"github.com/iamvkosarev/hablaya/pkg/prompt"
)

const helpText = `Type a message and press enter to practice.
/say <file>       send an audio file as a voice message
/replay           hear the last answer again
/stop             stop playback
/theme [name]     toggle or set the theme (light, dark)
/level <name>     auto, beginner, elementary, intermediate, upper-intermediate, advanced
/focus <name>     conversation, pronunciation, grammar, vocabulary, writing, speaking
/voice <name>     alloy, echo, fable, onyx, nova, shimmer
/speed <x>        speech speed from 0.25 to 4
/stats            show practice statistics
/quit             leave`

var errQuit = errors.New("quit")

type Controller interface {
	SubmitText(ctx context.Context, text string) (model.Message, error)
	SubmitRecording(ctx context.Context, rec session.Recording) (model.Message, error)
	Replay(ctx context.Context, text string) error
	StopPlayback()
	History() []model.Message
	Stats() model.SessionStats
	Settings() model.SessionSettings
	UpdateSettings(ctx context.Context, settings model.SessionSettings) model.SessionSettings
	SetTheme(ctx context.Context, theme string) error
	ToggleTheme(ctx context.Context) string
}

type REPLDeps struct {
	Controller Controller
	Renderer   *Renderer
	Logger     *slog.Logger
}

// REPL reads one input per line until EOF, /quit or ctx is done.
type REPL struct {
	REPLDeps
	readFile func(string) ([]byte, error)
	now      func() time.Time
}

func NewREPL(deps REPLDeps) *REPL {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &REPL{
		REPLDeps: deps,
		readFile: os.ReadFile,
		now:      time.Now,
	}
}

func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	r.Renderer.Info("HablaYa English practice. /help lists commands.")
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			r.Controller.StopPlayback()
			return nil
		case line, ok := <-lines:
			if !ok {
				r.Controller.StopPlayback()
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("failed to read input: %w", err)
					}
				default:
				}
				return nil
			}
			if err := r.handleLine(ctx, strings.TrimSpace(line)); err != nil {
				if errors.Is(err, errQuit) {
					r.Controller.StopPlayback()
					return nil
				}
				r.Logger.DebugContext(ctx, "turn failed", slog.Any("error", err))
			}
		}
	}
}

// handleLine runs one input. Turn errors were already shown by the
// controller and are only returned for logging.
func (r *REPL) handleLine(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		_, err := r.Controller.SubmitText(ctx, line)
		return err
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	settings := r.Controller.Settings()

	switch strings.ToLower(name) {
	case "quit", "exit":
		return errQuit
	case "help":
		r.Renderer.Info(helpText)
	case "say":
		return r.say(ctx, arg)
	case "replay":
		last, ok := lastAssistant(r.Controller.History())
		if !ok {
			r.Renderer.Info("There is nothing to replay yet.")
			return nil
		}
		return r.Controller.Replay(ctx, last)
	case "stop":
		r.Controller.StopPlayback()
	case "theme":
		theme := arg
		if theme == "" {
			theme = r.Controller.ToggleTheme(ctx)
		} else if err := r.Controller.SetTheme(ctx, strings.ToLower(theme)); err != nil {
			r.Renderer.ShowNotice(fmt.Sprintf("Unknown theme %q, use light or dark.", theme))
			return nil
		}
		r.Renderer.SetTheme(strings.ToLower(theme))
		r.Renderer.Info("Theme: " + r.Renderer.Theme())
	case "stats":
		r.Renderer.Info(formatStats(r.Controller.Stats(), r.now()))
	case "level":
		level, ok := proficiency.ParseLevel(strings.ToLower(arg))
		if !ok {
			r.Renderer.ShowNotice("Unknown level " + strconv.Quote(arg))
			return nil
		}
		settings.ProficiencyLevel = level
		r.apply(ctx, settings, "Level: "+string(level))
	case "focus":
		focus, ok := prompt.ParseFocus(strings.ToLower(arg))
		if !ok {
			r.Renderer.ShowNotice("Unknown focus " + strconv.Quote(arg))
			return nil
		}
		settings.LearningFocus = focus
		r.apply(ctx, settings, "Focus: "+string(focus))
	case "voice":
		voice := strings.ToLower(arg)
		if !usecase.IsSpeechVoice(voice) {
			r.Renderer.ShowNotice("Unknown voice " + strconv.Quote(arg))
			return nil
		}
		settings.VoiceID = voice
		r.apply(ctx, settings, "Voice: "+voice)
	case "speed":
		speed, err := usecase.ParseSpeed(arg)
		if err != nil {
			r.Renderer.ShowNotice("Speed must be a number such as 0.9")
			return nil
		}
		settings.SpeechRate = speed
		r.apply(ctx, settings, "Speed: "+strconv.FormatFloat(settings.SpeechRate, 'f', -1, 64))
	default:
		r.Renderer.ShowNotice("Unknown command /" + name + ", try /help")
	}
	return nil
}

func (r *REPL) apply(ctx context.Context, settings model.SessionSettings, confirmation string) {
	r.Controller.UpdateSettings(ctx, settings)
	r.Renderer.Info(confirmation)
}

func (r *REPL) say(ctx context.Context, path string) error {
	if path == "" {
		r.Renderer.ShowNotice("Usage: /say <audio file>")
		return nil
	}
	data, err := r.readFile(path)
	if err != nil {
		r.Renderer.ShowNotice("Cannot read " + path)
		return fmt.Errorf("failed to read audio file: %w", err)
	}
	_, err = r.Controller.SubmitRecording(
		ctx, session.Recording{
			Data:        data,
			Filename:    filepath.Base(path),
			ContentType: audioContentType(path),
		},
	)
	return err
}

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".mpga": "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
}

func audioContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if contentType, ok := audioTypes[ext]; ok {
		return contentType
	}
	return mime.TypeByExtension(ext)
}

func lastAssistant(history []model.Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleAssistant {
			return history[i].Content, true
		}
	}
	return "", false
}

func formatStats(stats model.SessionStats, now time.Time) string {
	return fmt.Sprintf(
		"messages %d · words %d · accuracy %d%% · %d min",
		stats.MessagesSent,
		stats.WordsPracticed,
		int(stats.AccuracyScore()*100+0.5),
		int(stats.Elapsed(now).Minutes()),
	)
}
