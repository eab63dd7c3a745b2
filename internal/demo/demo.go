package demo

import (
	"fmt"
	"slices"

	"github.com/Iron-Ham/wormhole/internal/dispatch"
	tea "github.com/charmbracelet/bubbletea"
)

// Roles are the demo participants. Each one sends under its own name and
// listens to the others.
var Roles = []string{"host", "extension", "watch"}

// EchoIdentifier is where the in-process echo peer answers.
const EchoIdentifier = "echo"

// OptionsForRole returns the Options of a built-in role.
func OptionsForRole(role, transportName string) (Options, error) {
	if !slices.Contains(Roles, role) {
		return Options{}, fmt.Errorf("unknown demo role %q (valid: host, extension, watch)", role)
	}
	listen := make([]string, 0, len(Roles))
	for _, r := range Roles {
		if r != role {
			listen = append(listen, r)
		}
	}
	listen = append(listen, EchoIdentifier)
	return Options{Role: role, Transport: transportName, Send: role, Listen: listen}, nil
}

// Connect builds the messaging side. Listeners registered on the returned
// Passer must run through d.
type Connect func(d dispatch.Dispatcher) (Passer, error)

// Run connects, starts the program and blocks until the user quits.
// Listener callbacks are sent into the program as messages so they run on
// the program goroutine.
func Run(opts Options, connect Connect, programOpts ...tea.ProgramOption) error {
	var p *tea.Program
	ready := make(chan struct{})
	d := dispatch.Func(func(fn func()) {
		<-ready
		p.Send(dispatchMsg(fn))
	})

	passer, err := connect(d)
	if err != nil {
		return err
	}

	m := New(opts, passer)
	m.Listen()
	p = tea.NewProgram(m, programOpts...)
	close(ready)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	return nil
}
