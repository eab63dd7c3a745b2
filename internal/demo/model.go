// Package demo is a small terminal app that shows messages moving between
// processes. Start it once per role in separate terminals, type a line or
// press the button, and watch the other roles receive it.
package demo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/wormhole/internal/messenger"
	"github.com/Iron-Ham/wormhole/internal/transport"
	"github.com/Iron-Ham/wormhole/internal/util"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Passer is the messaging surface the demo drives.
type Passer interface {
	PassMessage(payload any, identifier string) transport.Outcome
	ListenForMessage(identifier string, l messenger.Listener)
	ClearAllMessageContents()
}

// Options describes one demo participant.
type Options struct {
	// Role names this participant, e.g. "host".
	Role string
	// Transport is shown in the header.
	Transport string
	// Send is the identifier this participant writes to.
	Send string
	// Listen lists the identifiers this participant shows.
	Listen []string
}

// maxEvents bounds the event log kept in memory.
const maxEvents = 200

// dispatchMsg carries listener work onto the program goroutine.
type dispatchMsg func()

type event struct {
	at         time.Time
	identifier string
	payload    any
	outgoing   bool
	outcome    transport.Outcome
}

// inbox collects events produced by listeners. Listeners run inside Update,
// so it is only touched on the program goroutine.
type inbox struct {
	events []event
}

func (b *inbox) push(e event) {
	b.events = append(b.events, e)
}

func (b *inbox) drain() []event {
	out := b.events
	b.events = nil
	return out
}

type keyMap struct {
	Send     key.Binding
	Button   key.Binding
	Clear    key.Binding
	ClearAll key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Send:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send text")),
		Button:   key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "press button")),
		Clear:    key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear log")),
		ClearAll: key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "clear messages")),
		Quit:     key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.Send, k.Button, k.Clear, k.ClearAll, k.Quit}
}

// Model is the bubbletea model of the demo.
type Model struct {
	opts   Options
	passer Passer
	inbox  *inbox
	keys   keyMap
	input  textinput.Model

	events   []event
	presses  int
	status   string
	width    int
	height   int
	quitting bool
}

// New creates the model. Call Listen before handing it to a program.
func New(opts Options, p Passer) Model {
	ti := textinput.New()
	ti.Placeholder = "type a message"
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 40

	return Model{
		opts:   opts,
		passer: p,
		inbox:  &inbox{},
		keys:   defaultKeyMap(),
		input:  ti,
	}
}

// Listen registers a listener for every identifier in Options.Listen.
func (m Model) Listen() {
	box := m.inbox
	for _, id := range m.opts.Listen {
		m.passer.ListenForMessage(id, func(payload any) {
			box.push(event{at: time.Now(), identifier: id, payload: payload})
		})
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-6)
		return m, nil

	case dispatchMsg:
		msg()
		m.record(m.inbox.drain()...)
		return m, nil

	case tea.KeyMsg:
		m.status = ""
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Send):
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.pass(map[string]any{"from": m.opts.Role, "text": text})
			return m, nil

		case key.Matches(msg, m.keys.Button):
			m.presses++
			m.pass(map[string]any{"from": m.opts.Role, "button": m.presses})
			return m, nil

		case key.Matches(msg, m.keys.Clear):
			m.events = nil
			return m, nil

		case key.Matches(msg, m.keys.ClearAll):
			m.passer.ClearAllMessageContents()
			m.status = "cleared stored messages"
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) pass(payload map[string]any) {
	outcome := m.passer.PassMessage(payload, m.opts.Send)
	m.record(event{
		at:         time.Now(),
		identifier: m.opts.Send,
		payload:    payload,
		outgoing:   true,
		outcome:    outcome,
	})
	if !outcome.Accepted() {
		m.status = "send failed; check the logs"
	}
}

func (m *Model) record(events ...event) {
	m.events = append(m.events, events...)
	if over := len(m.events) - maxEvents; over > 0 {
		m.events = m.events[over:]
	}
}

// visibleEvents is how many log lines fit under the header and input.
func (m Model) visibleEvents() int {
	if m.height == 0 {
		return 15
	}
	return max(3, m.height-9)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("wormhole demo · " + m.opts.Role))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("transport %s · sends %q · listens %s",
		m.opts.Transport, m.opts.Send, strings.Join(m.opts.Listen, ", "))))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	events := m.events
	if n := m.visibleEvents(); len(events) > n {
		events = events[len(events)-n:]
	}
	if len(events) == 0 {
		b.WriteString(mutedStyle.Render("no messages yet"))
		b.WriteString("\n")
	}
	for _, e := range events {
		b.WriteString(util.FitLine(m.renderEvent(e), m.width))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(warningStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderEvent(e event) string {
	ts := mutedStyle.Render(e.at.Format("15:04:05"))
	arrow := incomingStyle.Render("←")
	suffix := ""
	if e.outgoing {
		arrow = outgoingStyle.Render("→")
		suffix = " " + mutedStyle.Render("("+e.outcome.String()+")")
	}
	return fmt.Sprintf("%s %s %s %s%s", ts, arrow, idStyle.Render(e.identifier), preview(e.payload), suffix)
}

func (m Model) renderHelp() string {
	parts := make([]string, 0, len(m.keys.bindings()))
	for _, kb := range m.keys.bindings() {
		h := kb.Help()
		parts = append(parts, helpKeyStyle.Render(h.Key)+" "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, "  "))
}

// preview renders a payload on one line.
func preview(payload any) string {
	b, err := json.Marshal(payload)
	if err != nil {
		return util.TruncateRunes(fmt.Sprintf("%v", payload), 80)
	}
	return string(b)
}
