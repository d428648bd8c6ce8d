package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/mirabel/cli/reader"
	"github.com/pithecene-io/mirabel/types"
)

// footerHeight is the help line plus its top margin.
const footerHeight = 2

// TranscriptModel is a scrollable, read-only transcript view.
type TranscriptModel struct {
	report   *reader.ReplayReport
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	quitting bool
}

// NewTranscriptModel creates a transcript model over report.
func NewTranscriptModel(report *reader.ReplayReport) TranscriptModel {
	return TranscriptModel{report: report}
}

// Init implements tea.Model.
func (m TranscriptModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m TranscriptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		bodyHeight := max(msg.Height-lipgloss.Height(m.header())-footerHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, bodyHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = bodyHeight
		}
		m.viewport.SetContent(m.body(msg.Width))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case !m.ready:
			return m, nil
		case key.Matches(msg, keys.Top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, keys.Bottom):
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m TranscriptModel) View() string {
	if m.quitting {
		return ""
	}
	if m.report == nil {
		return "Invalid data type for replay_transcript"
	}
	if !m.ready {
		return m.header() + "\n" + m.body(0)
	}

	help := HelpStyle.Render(fmt.Sprintf("%3.f%%  ↑/↓ scroll · g/G top/bottom · q quit",
		m.viewport.ScrollPercent()*100))
	return m.header() + "\n" + m.viewport.View() + "\n" + help
}

func (m TranscriptModel) header() string {
	if m.report == nil {
		return ""
	}
	s := m.report.Session

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Transcript"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		LabelStyle.Render("Session:"), ValueStyle.Render(s.SessionID),
		"Mode:", ValueStyle.Render(s.Mode),
		"Status:", StateStyle(s.Status).Render(s.Status))
	if s.AgentState != "" {
		fmt.Fprintf(&b, "%s %s\n",
			LabelStyle.Render("Agent:"), StateStyle(s.AgentState).Render(s.AgentState))
	}
	if s.PendingTopic != "" {
		fmt.Fprintf(&b, "%s %s\n",
			LabelStyle.Render("Pending Topic:"), TopicStyle.Render(s.PendingTopic))
	}
	return b.String()
}

// body renders every transcript line, wrapped to width when positive.
func (m TranscriptModel) body(width int) string {
	if m.report == nil || len(m.report.Transcript) == 0 {
		return HelpStyle.Render("(no transcript entries)")
	}

	text := lipgloss.NewStyle()
	if width > 0 {
		text = text.Width(width)
	}

	var b strings.Builder
	for _, line := range m.report.Transcript {
		speaker := SpeakerStyle(line.Speaker == types.SpeakerUser).Render(line.Speaker + ":")
		body := line.Text
		if !line.Final {
			body = PendingStyle.Render(body)
		}
		b.WriteString(text.Render(speaker + " " + body))
		b.WriteString("\n")
		if line.DetailTopic != "" {
			b.WriteString(TopicStyle.Render("▸ " + line.DetailTopic))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RunTranscriptTUI runs the transcript viewer.
func RunTranscriptTUI(data any) error {
	report, ok := data.(*reader.ReplayReport)
	if !ok {
		return fmt.Errorf("transcript view requires *reader.ReplayReport, got %T", data)
	}
	p := tea.NewProgram(NewTranscriptModel(report), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderTranscriptStatic renders the full transcript without a terminal
// program (for fallback).
func RenderTranscriptStatic(report *reader.ReplayReport) string {
	model := NewTranscriptModel(report)
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
