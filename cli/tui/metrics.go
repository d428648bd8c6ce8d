package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/mirabel/cli/reader"
)

// MetricsModel is a Bubble Tea model for the session metrics view.
type MetricsModel struct {
	report   *reader.ReplayReport
	width    int
	height   int
	quitting bool
}

// NewMetricsModel creates a new metrics model.
func NewMetricsModel(report *reader.ReplayReport) MetricsModel {
	return MetricsModel{report: report}
}

// Init implements tea.Model.
func (m MetricsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m MetricsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m MetricsModel) View() string {
	if m.quitting {
		return ""
	}
	if m.report == nil {
		return "Invalid data type for replay_metrics"
	}

	s := m.report.Metrics

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Metrics"))
	b.WriteString("\n\n")

	b.WriteString(m.row("Frames",
		m.renderStatBox("Received", s.FramesReceived, highlightColor),
		m.renderStatBox("Discarded", s.FramesDiscarded, mutedColor),
		m.renderStatBox("Played", s.QueueDequeued, successColor),
		m.renderStatBox("Dropped", s.QueueDropped, errorColor),
	))
	b.WriteString(m.row("Transcript",
		m.renderStatBox("Streams", s.TranscriptionStreams, highlightColor),
		m.renderStatBox("Chat", s.ChatMessages, highlightColor),
		m.renderStatBox("Duplicates", s.ChatDuplicates, mutedColor),
		m.renderStatBox("Stream Errors", s.StreamErrors, errorColor),
	))
	b.WriteString(m.row("Failures",
		m.renderStatBox("RPC", s.RPCFailures, errorColor),
		m.renderStatBox("Agent Missing", s.AgentMissing, warningColor),
		m.renderStatBox("IPC Decode", s.IPCDecodeErrors, errorColor),
		m.renderStatBox("Notify", s.NotifyFailures, errorColor),
	))

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + help
}

func (m MetricsModel) row(label string, boxes ...string) string {
	return LabelStyle.Render(label) + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, boxes...) + "\n"
}

func (m MetricsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	style := StatBoxStyle.BorderForeground(color)
	content := fmt.Sprintf("%s\n%s",
		StatValueStyle.Render(fmt.Sprintf("%d", value)),
		StatLabelStyle.Render(label))
	return style.Render(content)
}

// RunMetricsTUI runs the metrics TUI.
func RunMetricsTUI(data any) error {
	report, ok := data.(*reader.ReplayReport)
	if !ok {
		return fmt.Errorf("metrics view requires *reader.ReplayReport, got %T", data)
	}
	p := tea.NewProgram(NewMetricsModel(report), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
