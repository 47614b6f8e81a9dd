// Package terminal is a line-based HablaYa frontend: typed turns, voice turns
// from audio files, and replies played through an external player.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/iamvkosarev/hablaya/internal/session"
)

type palette struct {
	user      lipgloss.Color
	assistant lipgloss.Color
	notice    lipgloss.Color
	meta      lipgloss.Color
}

var palettes = map[string]palette{
	session.ThemeLight: {
		user:      lipgloss.Color("25"),
		assistant: lipgloss.Color("127"),
		notice:    lipgloss.Color("160"),
		meta:      lipgloss.Color("243"),
	},
	session.ThemeDark: {
		user:      lipgloss.Color("81"),
		assistant: lipgloss.Color("213"),
		notice:    lipgloss.Color("203"),
		meta:      lipgloss.Color("245"),
	},
}

type styles struct {
	userLabel      lipgloss.Style
	assistantLabel lipgloss.Style
	notice         lipgloss.Style
	meta           lipgloss.Style
}

// Renderer prints session events to a terminal. It is safe for concurrent
// use.
type Renderer struct {
	mu     sync.Mutex
	out    io.Writer
	lg     *lipgloss.Renderer
	theme  string
	styles styles
}

func NewRenderer(out io.Writer, theme string) *Renderer {
	r := &Renderer{
		out: out,
		lg:  lipgloss.NewRenderer(out),
	}
	r.SetTheme(theme)
	return r
}

// SetTheme switches palettes; unknown themes fall back to light.
func (r *Renderer) SetTheme(theme string) {
	p, ok := palettes[theme]
	if !ok {
		theme, p = session.ThemeLight, palettes[session.ThemeLight]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.theme = theme
	r.styles = styles{
		userLabel:      r.lg.NewStyle().Bold(true).Foreground(p.user),
		assistantLabel: r.lg.NewStyle().Bold(true).Foreground(p.assistant),
		notice:         r.lg.NewStyle().Foreground(p.notice),
		meta:           r.lg.NewStyle().Italic(true).Foreground(p.meta),
	}
}

func (r *Renderer) Theme() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.theme
}

func (r *Renderer) ShowMessage(msg model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	label := r.styles.assistantLabel.Render("tutor ›")
	if msg.Role == model.RoleUser {
		label = r.styles.userLabel.Render("you ›")
		if msg.Metadata != nil && msg.Metadata.IsVoiceInput {
			label += r.styles.meta.Render(" (voice)")
		}
	}
	fmt.Fprintf(r.out, "%s %s\n", label, msg.Content)
}

func (r *Renderer) ShowNotice(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.styles.notice.Render("! "+text))
}

func (r *Renderer) ShowFeedback(result model.TranscriptionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(
		r.out, r.styles.meta.Render(
			fmt.Sprintf("heard %q (confidence %d%%)", result.Text, int(result.Confidence*100+0.5)),
		),
	)
	for _, suggestion := range result.LearningSuggestions {
		fmt.Fprintln(r.out, r.styles.meta.Render("  • "+suggestion))
	}
}

func (r *Renderer) ShowTyping(on bool) {
	if !on {
		return
	}
	r.Info("tutor is typing…")
}

func (r *Renderer) ShowState(state session.State) {
	if state == session.StateTranscribing {
		r.Info("transcribing…")
	}
}

// Info prints a dimmed line that is not part of the conversation.
func (r *Renderer) Info(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintln(r.out, r.styles.meta.Render(line))
	}
}
