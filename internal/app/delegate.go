package app

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/cloudtodo/internal/ui"
)

// listItem adapts a todo to bubbles/list.Item
type listItem struct {
	ID      string
	Content string
}

// Implement list.Item interface
func (i listItem) Title() string       { return i.Content }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.Content }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(listItem)
	t := ui.Current()

	text := it.Content
	if text == "" {
		text = t.Muted.Render("(empty)")
	}
	prefix := "  "
	if index == m.Index() {
		prefix = t.Selected.Render(t.Cursor)
	}
	fmt.Fprint(w, prefix+t.Muted.Render(t.Bullet)+" "+text)
}
