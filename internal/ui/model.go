package ui

import (
	"context"
	"strings"

	"amzaki/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	title           = "Am Zaki"
	inputHeight     = 3
	editorHeight    = 8
	maxBubbleWidth  = 80
	defaultWidth    = 80
	defaultHeight   = 24
	helpIdle        = "enter send • alt+enter newline • ctrl+o instructions • ctrl+l clear • ctrl+c quit"
	helpEditor      = "ctrl+s save • esc cancel"
	statusThinking  = " Thinking..."
	editorHeaderMsg = "System instructions (applied from the next message)"
	notSentNotice   = "⚠️ Message not sent, a reply is still pending."
	noClearNotice   = "⚠️ History not cleared, a reply is still pending."
)

// Session is the part of session.Manager the chat screen drives.
type Session interface {
	Submit(ctx context.Context, text string) (<-chan session.Result, error)
	SetSystemInstructions(text string)
	SystemInstructions() string
	Clear() error
	Welcome()
}

// submittedMsg reports whether the session accepted a message.
type submittedMsg struct {
	text string
	err  error
}

// clearedMsg reports the outcome of a clear. mark is the transcript length
// when the clear was requested; entries after it arrived during the clear.
type clearedMsg struct {
	mark int
	err  error
}

type entry struct {
	role session.Role
	text string
}

// Model is the bubbletea model for the chat screen. Session calls that emit
// notifications run inside commands so the bridge can deliver them back
// through the program.
type Model struct {
	ctx     context.Context
	session Session
	styles  styles

	input    textarea.Model
	editor   textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	entries  []entry
	sending  bool
	clearing bool
	editing  bool
	width   int
	height  int
}

func NewModel(ctx context.Context, s Session) Model {
	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline.SetKeys("alt+enter")
	input.Focus()

	editor := textarea.New()
	editor.Placeholder = "e.g. Answer briefly and politely."
	editor.ShowLineNumbers = false
	editor.CharLimit = 0
	editor.SetHeight(editorHeight)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := Model{
		ctx:      ctx,
		session:  s,
		styles:   defaultStyles(),
		input:    input,
		editor:   editor,
		viewport: viewport.New(defaultWidth, defaultHeight),
		spinner:  sp,
	}
	m.resize(defaultWidth, defaultHeight)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.welcome(), textarea.Blink)
}

func (m Model) welcome() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		s.Welcome()
		return nil
	}
}

func (m Model) submit(text string) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		// The reply arrives via the notifier, so the result channel is not
		// needed here.
		_, err := s.Submit(ctx, text)
		return submittedMsg{text: text, err: err}
	}
}

func (m Model) clear() tea.Cmd {
	s, mark := m.session, len(m.entries)
	return func() tea.Msg {
		return clearedMsg{mark: mark, err: s.Clear()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case MessageMsg:
		m.entries = append(m.entries, entry{role: msg.Role, text: msg.Text})
		m.refresh()
		return m, nil

	case submittedMsg:
		if msg.err == nil {
			return m, nil
		}
		m.sending = false
		if m.input.Value() == "" {
			m.input.SetValue(msg.text)
		} else {
			m.entries = append(m.entries, entry{role: session.RoleNotice, text: notSentNotice})
			m.refresh()
		}
		return m, nil

	case clearedMsg:
		m.clearing = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{role: session.RoleNotice, text: noClearNotice})
		} else if msg.mark <= len(m.entries) {
			m.entries = append([]entry(nil), m.entries[msg.mark:]...)
		}
		m.refresh()
		return m, nil

	case StatusMsg:
		m.sending = msg.Sending
		if m.sending {
			return m, m.spinner.Tick
		}
		return m, nil

	case spinner.TickMsg:
		if !m.sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.editing {
		m.editor, cmd = m.editor.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.editing {
		switch msg.Type {
		case tea.KeyCtrlS:
			m.session.SetSystemInstructions(m.editor.Value())
			return m.closeEditor()
		case tea.KeyEsc:
			return m.closeEditor()
		}
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		if m.sending || m.clearing || text == "" {
			return m, nil
		}
		// Busy until the session reports otherwise, so a second enter
		// cannot race the first submit.
		m.sending = true
		m.input.Reset()
		return m, m.submit(text)

	case tea.KeyCtrlL:
		if m.sending || m.clearing {
			return m, nil
		}
		m.clearing = true
		return m, m.clear()

	case tea.KeyCtrlO:
		m.editing = true
		m.editor.SetValue(m.session.SystemInstructions())
		m.input.Blur()
		return m, m.editor.Focus()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) closeEditor() (tea.Model, tea.Cmd) {
	m.editing = false
	m.editor.Blur()
	return m, m.input.Focus()
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	m.input.SetWidth(width)
	m.editor.SetWidth(max(width-4, 10))

	// title, status line, input box and its border
	chrome := 1 + 1 + inputHeight + 2
	m.viewport.Width = width
	m.viewport.Height = max(height-chrome, 1)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	blocks := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		blocks = append(blocks, m.renderEntry(e))
	}
	return strings.Join(blocks, "\n")
}

func (m Model) renderEntry(e entry) string {
	limit := min(m.width*3/4, maxBubbleWidth)
	switch e.role {
	case session.RoleUser:
		text := "👤 " + e.text
		bubble := fitWidth(m.styles.user, text, limit).Render(text)
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, bubble)
	case session.RoleAssistant:
		text := "🤖 " + e.text
		return fitWidth(m.styles.assistant, text, limit).Render(text)
	default:
		return fitWidth(m.styles.notice, e.text, limit).Render(e.text)
	}
}

// fitWidth wraps long text at limit columns and leaves short text unpadded.
func fitWidth(style lipgloss.Style, text string, limit int) lipgloss.Style {
	widest := 0
	for _, line := range strings.Split(text, "\n") {
		widest = max(widest, lipgloss.Width(line))
	}
	// border and padding
	frame := style.GetHorizontalFrameSize()
	if limit > frame && widest+frame > limit {
		return style.Width(limit - style.GetHorizontalBorderSize())
	}
	return style
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render(title))
	b.WriteString("\n")

	if m.editing {
		b.WriteString(m.styles.help.Render(editorHeaderMsg))
		b.WriteString("\n")
		b.WriteString(m.styles.editor.Render(m.editor.View()))
		b.WriteString("\n")
		b.WriteString(m.styles.help.Render(helpEditor))
		return b.String()
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.sending {
		b.WriteString(m.styles.status.Render(m.spinner.View() + statusThinking))
	} else {
		b.WriteString(m.styles.help.Render(helpIdle))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

// Sending reports whether the screen shows a request in flight.
func (m Model) Sending() bool {
	return m.sending
}
