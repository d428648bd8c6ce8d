package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/mirabel/cli/reader"
	"github.com/pithecene-io/mirabel/metrics"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{"replay_transcript", true},
		{"replay_metrics", true},

		// Not supported: run owns stdout for the sidecar pipe
		{"run", false},
		{"version", false},
		{"replay", false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			got := IsTUISupported(tt.viewType)
			if got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestSupportedTUIViews(t *testing.T) {
	views := SupportedTUIViews()
	if len(views) != 2 {
		t.Errorf("SupportedTUIViews() returned %d views, expected 2", len(views))
	}
	for _, v := range views {
		if !IsTUISupported(v) {
			t.Errorf("SupportedTUIViews() returned %q but IsTUISupported returns false", v)
		}
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("run", nil); err == nil {
		t.Error("Expected error for unsupported view type")
	}
}

func TestRun_WrongDataType(t *testing.T) {
	if err := Run(ViewReplayTranscript, "not a report"); err == nil {
		t.Error("Expected error for wrong data type")
	}
	if err := Run(ViewReplayMetrics, 42); err == nil {
		t.Error("Expected error for wrong data type")
	}
}

func testReport() *reader.ReplayReport {
	return &reader.ReplayReport{
		Session: reader.SessionSummary{
			SessionID:    "sess-1",
			Mode:         "avatar",
			Status:       "thinking",
			AgentState:   "thinking",
			PendingTopic: "menu",
			Entries:      2,
		},
		Transcript: []reader.TranscriptLine{
			{ID: "chat-1", Speaker: "You", Text: "what is on the menu", Final: true},
			{ID: "SEG", Speaker: "Agent", Text: "let me check", DetailTopic: "menu"},
		},
		Metrics: metrics.Snapshot{FramesReceived: 300, QueueDequeued: 100, ChatMessages: 1},
	}
}

func quitKey() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
}

func TestTranscriptModel_View(t *testing.T) {
	var model tea.Model = NewTranscriptModel(testReport())
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	view := model.View()
	for _, want := range []string{"Transcript", "sess-1", "what is on the menu", "let me check", "menu", "quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestTranscriptModel_Quit(t *testing.T) {
	var model tea.Model = NewTranscriptModel(testReport())
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	model, cmd := model.Update(quitKey())
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("command is not tea.Quit")
	}
	if model.View() != "" {
		t.Error("view not empty after quit")
	}
}

func TestTranscriptModel_KeysBeforeResize(t *testing.T) {
	var model tea.Model = NewTranscriptModel(testReport())

	// Scroll keys before the first WindowSizeMsg must not panic.
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	if !strings.Contains(model.View(), "let me check") {
		t.Error("unsized view missing transcript")
	}
}

func TestTranscriptModel_Empty(t *testing.T) {
	view := RenderTranscriptStatic(&reader.ReplayReport{})
	if !strings.Contains(view, "no transcript entries") {
		t.Errorf("empty view = %q", view)
	}
}

func TestMetricsModel_View(t *testing.T) {
	var model tea.Model = NewMetricsModel(testReport())
	model, _ = model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	view := model.View()
	for _, want := range []string{"Session Metrics", "300", "Played", "Notify"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	model, cmd := model.Update(quitKey())
	if cmd == nil || model.View() != "" {
		t.Error("quit did not end the view")
	}
}

func TestStateStyle(t *testing.T) {
	if StateStyle("ask").GetForeground() != successColor {
		t.Error("ask should use success color")
	}
	if StateStyle("muted").GetForeground() != errorColor {
		t.Error("muted should use error color")
	}
	if StateStyle("other").GetForeground() != ValueStyle.GetForeground() {
		t.Error("unknown state should use value style")
	}
}
