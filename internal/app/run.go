package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run mounts the view and blocks until the user quits. The subscription is
// released however the program ends.
func Run(ctx context.Context, deps Deps, opts ...tea.ProgramOption) error {
	m := New(ctx, deps)
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, opts...)

	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.Close()
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
