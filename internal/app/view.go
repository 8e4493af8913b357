package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/idilsaglam/cloudtodo/internal/i18n"
	"github.com/idilsaglam/cloudtodo/internal/session"
	"github.com/idilsaglam/cloudtodo/internal/ui"
)

func (m Model) View() string {
	switch m.state {
	case StateResolving:
		return ui.Panel([]string{ui.Current().Muted.Render(m.deps.Text.T(i18n.Resolving))})
	case StateUnauthenticated:
		return m.signInView()
	default:
		return m.todosView()
	}
}

func (m Model) signInView() string {
	t := ui.Current()
	tx := m.deps.Text

	lines := []string{button(tx.T(i18n.SignInWithAuth0))}
	if m.reason == session.ReasonExpired {
		lines = append(lines, t.Muted.Render(tx.T(i18n.SessionExpired)))
	}
	if s := m.statusLine(); s != "" {
		lines = append(lines, s)
	}
	lines = append(lines, "", helpLine([]key.Binding{keys.SignIn, keys.Retry, keys.Quit}))
	return ui.Panel(lines)
}

func (m Model) todosView() string {
	t := ui.Current()
	tx := m.deps.Text

	lines := []string{
		t.Title.Render(tx.T(i18n.Welcome, "username", m.displayName)),
		t.Title.Render(tx.T(i18n.MyTodos)),
		button(tx.T(i18n.NewTodo)),
	}

	if len(m.todos) == 0 {
		lines = append(lines, t.Muted.Render("  "+t.Bullet+" no todos yet"))
	} else {
		lines = append(lines, m.list.View())
	}

	if m.adding {
		bar := ui.Panel([]string{tx.T(i18n.NewTodoPrompt), m.input.View()})
		lines = append(lines, bar)
	}

	chatLabel := tx.T(i18n.ShowChat)
	if m.showChat {
		chatLabel = tx.T(i18n.HideChat)
	}
	lines = append(lines,
		"",
		tx.T(i18n.AppHosted),
		button(tx.T(i18n.SignOut)),
		button(chatLabel),
	)
	if m.showChat && m.chat != nil {
		lines = append(lines, m.chat.View())
	}
	if s := m.statusLine(); s != "" {
		lines = append(lines, s)
	}
	lines = append(lines, "", helpLine(m.shortHelp()))
	return ui.Panel(lines)
}

func (m Model) statusLine() string {
	if m.status == "" {
		return ""
	}
	t := ui.Current()
	if m.statusErr {
		return t.Error.Render(m.status)
	}
	return t.Success.Render(m.status)
}

func button(label string) string {
	return ui.Current().Accent.Render("[ " + label + " ]")
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return ui.Current().Muted.Render(strings.Join(parts, " · "))
}
