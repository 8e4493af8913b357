// Package chat is the embedded chat panel. The view only mounts, unmounts,
// forwards input to and renders it.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/cloudtodo/internal/ui"
)

const maxLines = 8

type Model struct {
	input      textinput.Model
	transcript []string
	mounted    bool
}

func New() *Model {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "Say something..."
	ti.CharLimit = 280
	return &Model{input: ti}
}

// Mount focuses the input and returns its blink command.
func (m *Model) Mount() tea.Cmd {
	m.mounted = true
	m.input.Focus()
	return textinput.Blink
}

func (m *Model) Unmount() {
	m.mounted = false
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) Mounted() bool { return m.mounted }

// Focused reports whether the chat input currently takes key presses.
func (m *Model) Focused() bool { return m.mounted && m.input.Focused() }

func (m *Model) Focus() { m.input.Focus() }
func (m *Model) Blur()  { m.input.Blur() }

func (m *Model) Transcript() []string { return m.transcript }

func (m *Model) Update(msg tea.Msg) tea.Cmd {
	if !m.mounted {
		return nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEnter {
		if line := strings.TrimSpace(m.input.Value()); line != "" {
			m.transcript = append(m.transcript, line)
			if len(m.transcript) > maxLines {
				m.transcript = m.transcript[len(m.transcript)-maxLines:]
			}
		}
		m.input.SetValue("")
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) View() string {
	if !m.mounted {
		return ""
	}
	t := ui.Current()
	lines := []string{t.Title.Render("Chat")}
	if len(m.transcript) == 0 {
		lines = append(lines, t.Muted.Render("no messages yet"))
	}
	for _, l := range m.transcript {
		lines = append(lines, t.Accent.Render("you: ")+l)
	}
	lines = append(lines, m.input.View())
	return ui.Panel(lines)
}
