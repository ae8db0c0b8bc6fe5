// Package tui provides the BubbleTea-based terminal render target: a styled
// "now playing" card for the template currently being synchronized.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/displaysyncd/internal/config"
	"github.com/jmylchreest/displaysyncd/internal/template"
)

// PositionFunc reports elapsed playback seconds and whether a track is
// playing. Wired to the audio player when one is running.
type PositionFunc func() (elapsed int64, playing bool)

// renderMsg carries a template to display.
type renderMsg struct {
	tpl *template.Template
}

// clearMsg tears the current card down.
type clearMsg struct {
	tpl *template.Template
}

// tickMsg drives the elapsed-time readout.
type tickMsg time.Time

// Styles for the card.
var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().Bold(true)

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Italic(true)
)

// Model is the terminal render target's BubbleTea model.
type Model struct {
	cfg      *config.DisplayConfig
	position PositionFunc

	tpl        *template.Template
	renderedAt time.Time

	viewport viewport.Model
	width    int
	height   int
	ready    bool
}

// New creates a new TUI model.
func New(cfg *config.DisplayConfig, position PositionFunc) Model {
	vp := viewport.New(0, 0)
	return Model{
		cfg:      cfg,
		position: position,
		viewport: vp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 8
		m.viewport.Height = max(msg.Height-10, 3)
		m.ready = true

	case renderMsg:
		m.tpl = msg.tpl
		m.renderedAt = time.Now()
		if p, ok := msg.tpl.Payload.(template.TextPayload); ok {
			m.viewport.SetContent(p.Body)
			m.viewport.GotoTop()
		}

	case clearMsg:
		// Stale clears for an older template are ignored.
		if m.tpl != nil && msg.tpl != nil && m.tpl.ID == msg.tpl.ID {
			m.tpl = nil
		}

	case tickMsg:
		return m, tick()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return ""
	}

	if m.tpl == nil {
		return idleStyle.Render("nothing playing") + "\n" +
			subtleStyle.Render("q to quit")
	}

	var body string
	switch p := m.tpl.Payload.(type) {
	case template.AudioPayload:
		body = m.audioCard(p)
	case template.TextPayload:
		body = titleStyle.Render(p.Header) + "\n\n" + m.viewport.View()
	case template.ImagePayload:
		body = titleStyle.Render(p.Header) + "\n" +
			p.ImageURL + "\n\n" +
			p.Description
	default:
		body = subtleStyle.Render(fmt.Sprintf("unsupported template %q", m.tpl.Type))
	}

	footer := subtleStyle.Render(fmt.Sprintf("shown %s · q to quit", humanize.Time(m.renderedAt)))
	return cardStyle.Render(body) + "\n" + footer
}

// audioCard renders the now-playing media card.
func (m Model) audioCard(p template.AudioPayload) string {
	lines := []string{titleStyle.Render(p.Title)}

	if p.Artist != "" {
		line := p.Artist
		if p.Album != "" {
			line += " · " + p.Album
		}
		lines = append(lines, line)
	}

	if m.position != nil {
		if elapsed, playing := m.position(); playing {
			readout := formatElapsed(elapsed)
			if p.DurationMS > 0 {
				readout += " / " + formatElapsed(int64(p.DurationMS/1000))
			}
			lines = append(lines, "", subtleStyle.Render(readout))
		}
	}

	if m.cfg != nil && m.cfg.ShowArtworkURL && p.ArtworkURL != "" {
		lines = append(lines, subtleStyle.Render(p.ArtworkURL))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// formatElapsed renders seconds as m:ss.
func formatElapsed(seconds int64) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
