package ui

import (
	"sync"

	"amzaki/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

// MessageMsg carries a new chat bubble into the program.
type MessageMsg struct {
	Role session.Role
	Text string
}

// StatusMsg reports whether a request is in flight.
type StatusMsg struct {
	Sending bool
}

// Bridge adapts session notifications to bubbletea messages. Notifications
// that arrive before a program is attached are dropped.
//
// Program.Send blocks until the event loop receives the message, so session
// calls that notify must run inside a tea.Cmd, never inside Update.
type Bridge struct {
	mu sync.RWMutex
	p  *tea.Program
}

func NewBridge() *Bridge {
	return &Bridge{}
}

func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.p = p
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	p := b.p
	b.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

func (b *Bridge) OnMessage(role session.Role, text string) {
	b.send(MessageMsg{Role: role, Text: text})
}

func (b *Bridge) OnStatusChange(sending bool) {
	b.send(StatusMsg{Sending: sending})
}
