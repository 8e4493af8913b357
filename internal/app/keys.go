package app

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	Quit, SignIn, Retry, Add, Delete, Chat, Focus, SignOut, Submit, Cancel key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	SignIn:  key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "sign in")),
	Retry:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
	Add:     key.NewBinding(key.WithKeys("a", "n"), key.WithHelp("a", "new")),
	Delete:  key.NewBinding(key.WithKeys("d", "x", "delete"), key.WithHelp("d", "delete")),
	Chat:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "chat")),
	Focus:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus chat")),
	SignOut: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sign out")),
	Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
	Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
}

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.Close()
		m.handle = nil
		return m, tea.Quit
	}

	switch m.state {
	case StateResolving:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	case StateUnauthenticated:
		return m.onUnauthenticatedKey(msg)
	}

	if m.adding {
		return m.onAddKey(msg)
	}
	if m.chatFocused() {
		switch {
		case key.Matches(msg, keys.Cancel), key.Matches(msg, keys.Focus):
			m.chat.Blur()
			return m, nil
		}
		return m, m.chat.Update(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.Close()
		m.handle = nil
		return m, tea.Quit

	case key.Matches(msg, keys.Add):
		if m.dispatcher == nil {
			return m, nil
		}
		m.adding = true
		m.input.SetValue("")
		m.input.Focus()
		m.resize()
		return m, textinput.Blink

	case key.Matches(msg, keys.Delete):
		it, ok := m.list.SelectedItem().(listItem)
		if !ok || m.dispatcher == nil {
			return m, nil
		}
		// The row disappears with the next snapshot, not before.
		return m, m.dispatcher.DeleteCmd(m.ctx, it.ID)

	case key.Matches(msg, keys.Chat):
		cmd := m.toggleChat()
		return m, cmd

	case key.Matches(msg, keys.Focus):
		if m.showChat && m.chat != nil {
			m.chat.Focus()
		}
		return m, nil

	case key.Matches(msg, keys.SignOut):
		return m.signOut()

	case key.Matches(msg, keys.Retry):
		if m.handle != nil || m.coll == nil {
			return m, nil
		}
		m.setStatus("", false)
		return m, m.subscribeCmd(m.coll)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) onUnauthenticatedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.SignIn):
		return m, m.signInCmd()
	case key.Matches(msg, keys.Retry):
		return m.retry()
	}
	return m, nil
}

// onAddKey handles the inline new-todo input. Esc cancels without a request;
// enter sends the content as typed, empty included.
func (m Model) onAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		m.adding = false
		m.input.Blur()
		m.input.SetValue("")
		m.resize()
		return m, nil
	case key.Matches(msg, keys.Submit):
		content := m.input.Value()
		m.adding = false
		m.input.Blur()
		m.input.SetValue("")
		m.resize()
		return m, m.dispatcher.CreateCmd(m.ctx, content)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// shortHelp is the key hint line for the signed-in view.
func (m Model) shortHelp() []key.Binding {
	if m.adding {
		return []key.Binding{keys.Submit, keys.Cancel}
	}
	b := []key.Binding{keys.Add, keys.Delete, keys.Chat, keys.SignOut, keys.Quit}
	if m.showChat {
		b = append(b, keys.Focus)
	}
	if m.handle == nil {
		b = append(b, keys.Retry)
	}
	return b
}
