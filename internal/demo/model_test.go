package demo

import (
	"strings"
	"testing"

	"github.com/Iron-Ham/wormhole/internal/messenger"
	"github.com/Iron-Ham/wormhole/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type fakePasser struct {
	outcome   transport.Outcome
	passed    []string
	payloads  []any
	listeners map[string]messenger.Listener
	cleared   int
}

func newFakePasser() *fakePasser {
	return &fakePasser{outcome: transport.OutcomePersisted, listeners: make(map[string]messenger.Listener)}
}

func (f *fakePasser) PassMessage(payload any, identifier string) transport.Outcome {
	f.passed = append(f.passed, identifier)
	f.payloads = append(f.payloads, payload)
	return f.outcome
}

func (f *fakePasser) ListenForMessage(identifier string, l messenger.Listener) {
	f.listeners[identifier] = l
}

func (f *fakePasser) ClearAllMessageContents() {
	f.cleared++
}

func newTestModel(t *testing.T) (Model, *fakePasser) {
	t.Helper()
	opts, err := OptionsForRole("host", "file")
	if err != nil {
		t.Fatalf("OptionsForRole() error = %v", err)
	}
	p := newFakePasser()
	m := New(opts, p)
	m.Listen()
	return m, p
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestOptionsForRole(t *testing.T) {
	tests := []struct {
		role       string
		wantListen []string
	}{
		{"host", []string{"extension", "watch", EchoIdentifier}},
		{"extension", []string{"host", "watch", EchoIdentifier}},
		{"watch", []string{"host", "extension", EchoIdentifier}},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			opts, err := OptionsForRole(tt.role, "file")
			if err != nil {
				t.Fatalf("OptionsForRole() error = %v", err)
			}
			if opts.Send != tt.role {
				t.Errorf("Send = %q, want %q", opts.Send, tt.role)
			}
			if strings.Join(opts.Listen, ",") != strings.Join(tt.wantListen, ",") {
				t.Errorf("Listen = %v, want %v", opts.Listen, tt.wantListen)
			}
		})
	}

	if _, err := OptionsForRole("phone", "file"); err == nil {
		t.Error("OptionsForRole(phone) should fail")
	}
}

func TestModel_ListenRegistersEveryIdentifier(t *testing.T) {
	_, p := newTestModel(t)
	for _, id := range []string{"extension", "watch", EchoIdentifier} {
		if p.listeners[id] == nil {
			t.Errorf("no listener registered for %q", id)
		}
	}
	if p.listeners["host"] != nil {
		t.Error("host should not listen to itself")
	}
}

func TestModel_SendText(t *testing.T) {
	m, p := newTestModel(t)
	m = typeText(t, m, "hello")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if len(p.passed) != 1 || p.passed[0] != "host" {
		t.Fatalf("passed = %v, want [host]", p.passed)
	}
	payload, ok := p.payloads[0].(map[string]any)
	if !ok || payload["text"] != "hello" || payload["from"] != "host" {
		t.Errorf("payload = %#v", p.payloads[0])
	}
	if m.input.Value() != "" {
		t.Errorf("input not reset: %q", m.input.Value())
	}
	if len(m.events) != 1 || !m.events[0].outgoing {
		t.Errorf("events = %+v, want one outgoing event", m.events)
	}
	if !strings.Contains(m.View(), "persisted") {
		t.Errorf("View() should show the outcome:\n%s", m.View())
	}
}

func TestModel_EmptyTextIsNotSent(t *testing.T) {
	m, p := newTestModel(t)
	m = typeText(t, m, "   ")
	_ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(p.passed) != 0 {
		t.Errorf("passed = %v, want nothing", p.passed)
	}
}

func TestModel_ButtonCounts(t *testing.T) {
	m, p := newTestModel(t)
	for range 3 {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	}
	if len(p.payloads) != 3 {
		t.Fatalf("passed %d messages, want 3", len(p.payloads))
	}
	last := p.payloads[2].(map[string]any)
	if last["button"] != 3 {
		t.Errorf("last button = %v, want 3", last["button"])
	}
}

func TestModel_FailedSendShowsStatus(t *testing.T) {
	m, p := newTestModel(t)
	p.outcome = transport.OutcomeFailed
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	if !strings.Contains(m.View(), "send failed") {
		t.Errorf("View() should report the failure:\n%s", m.View())
	}
}

func TestModel_DispatchedListenerRecordsEvent(t *testing.T) {
	m, p := newTestModel(t)
	l := p.listeners["extension"]
	m = update(t, m, dispatchMsg(func() { l(map[string]any{"button": 1}) }))

	if len(m.events) != 1 {
		t.Fatalf("events = %d, want 1", len(m.events))
	}
	e := m.events[0]
	if e.outgoing || e.identifier != "extension" {
		t.Errorf("event = %+v", e)
	}
	if !strings.Contains(m.View(), `{"button":1}`) {
		t.Errorf("View() should show the payload:\n%s", m.View())
	}
}

func TestModel_ClearKeys(t *testing.T) {
	m, p := newTestModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	if len(m.events) != 0 {
		t.Errorf("events = %d after clear, want 0", len(m.events))
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})
	if p.cleared != 1 {
		t.Errorf("ClearAllMessageContents called %d times, want 1", p.cleared)
	}
	if !strings.Contains(m.View(), "cleared stored messages") {
		t.Errorf("View() should confirm clearing:\n%s", m.View())
	}
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc command should produce tea.QuitMsg")
	}
	if next.(Model).View() != "" {
		t.Error("View() should be empty after quitting")
	}
}

func TestModel_EventLogIsBounded(t *testing.T) {
	m, _ := newTestModel(t)
	for range maxEvents + 25 {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	}
	if len(m.events) != maxEvents {
		t.Errorf("events = %d, want %d", len(m.events), maxEvents)
	}
}

func TestModel_ViewTruncatesToWidth(t *testing.T) {
	m, p := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 30, Height: 20})
	l := p.listeners["watch"]
	m = update(t, m, dispatchMsg(func() { l(strings.Repeat("x", 200)) }))

	for _, line := range strings.Split(m.View(), "\n") {
		if !strings.Contains(line, "xxx") {
			continue
		}
		if w := lipgloss.Width(line); w > 30 {
			t.Errorf("event line is %d columns wide, want <= 30: %q", w, line)
		}
		if !strings.Contains(line, "...") {
			t.Errorf("truncated line should end with an ellipsis: %q", line)
		}
	}
}
