// Package app is the interactive view: it resolves the session on mount,
// keeps a live list subscription while signed in and turns key presses into
// sign-in, sign-out, create, delete and chat toggles.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/idilsaglam/cloudtodo/internal/auth"
	"github.com/idilsaglam/cloudtodo/internal/chat"
	"github.com/idilsaglam/cloudtodo/internal/i18n"
	"github.com/idilsaglam/cloudtodo/internal/listsync"
	"github.com/idilsaglam/cloudtodo/internal/model"
	"github.com/idilsaglam/cloudtodo/internal/mutation"
	"github.com/idilsaglam/cloudtodo/internal/session"
	"github.com/idilsaglam/cloudtodo/internal/store"
)

type State int

const (
	StateResolving State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "authenticated"
	}
}

// Deps is everything the view talks to. It is built once at startup and
// passed in; the view never constructs clients itself.
type Deps struct {
	IDP             auth.IdentityProvider
	Resolver        *session.Resolver
	Backend         store.Backend
	Sync            *listsync.Synchronizer
	Text            i18n.Localizer
	Provider        auth.ProviderConfig
	MutationTimeout time.Duration
	Logger          *zap.Logger
}

type sessionMsg struct {
	epoch uint64
	res   session.Result
}

type subscribedMsg struct {
	epoch  uint64
	handle *listsync.Handle
	err    error
}

type signInMsg struct{ err error }

type signOutMsg struct{ err error }

// Model implements tea.Model.
type Model struct {
	deps Deps
	ctx  context.Context

	state       State
	epoch       uint64 // bumps on every session change
	displayName string
	reason      session.Reason

	todos      model.Snapshot
	list       list.Model
	coll       store.Collection
	handle     *listsync.Handle
	dispatcher *mutation.Dispatcher

	adding bool
	input  textinput.Model

	showChat bool
	chat     *chat.Model

	status    string
	statusErr bool

	width, height int
}

func New(ctx context.Context, deps Deps) Model {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(true)
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = deps.Text.T(i18n.NewTodoPrompt)
	ti.CharLimit = 500

	return Model{
		deps:  deps,
		ctx:   ctx,
		state: StateResolving,
		list:  l,
		input: ti,
	}
}

func (m Model) State() State             { return m.state }
func (m Model) DisplayName() string      { return m.displayName }
func (m Model) Todos() model.Snapshot    { return m.todos }
func (m Model) ChatVisible() bool        { return m.showChat }
func (m Model) ChatMounted() bool        { return m.chat != nil && m.chat.Mounted() }
func (m Model) Subscribed() bool         { return m.handle != nil }
func (m Model) Status() (string, bool)   { return m.status, m.statusErr }
func (m Model) Adding() bool             { return m.adding }
func (m Model) Handle() *listsync.Handle { return m.handle }

// Close releases the live subscription. The runner calls it on the final
// model so quitting by any path unmounts cleanly.
func (m Model) Close() {
	if m.handle != nil {
		m.handle.Close()
	}
	if m.chat != nil {
		m.chat.Unmount()
	}
}

func (m Model) Init() tea.Cmd {
	return m.resolveCmd()
}

func (m Model) resolveCmd() tea.Cmd {
	epoch := m.epoch
	ctx := m.ctx
	r := m.deps.Resolver
	return func() tea.Msg {
		return sessionMsg{epoch: epoch, res: r.Resolve(ctx)}
	}
}

func (m Model) subscribeCmd(coll store.Collection) tea.Cmd {
	epoch := m.epoch
	ctx := m.ctx
	s := m.deps.Sync
	return func() tea.Msg {
		h, err := s.Start(ctx, coll)
		return subscribedMsg{epoch: epoch, handle: h, err: err}
	}
}

func (m Model) signInCmd() tea.Cmd {
	ctx, idp, pc := m.ctx, m.deps.IDP, m.deps.Provider
	return func() tea.Msg {
		return signInMsg{err: idp.SignInRedirect(ctx, pc)}
	}
}

func (m Model) signOutCmd() tea.Cmd {
	ctx, idp := m.ctx, m.deps.IDP
	return func() tea.Msg {
		return signOutMsg{err: idp.SignOut(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case sessionMsg:
		return m.onSession(msg)

	case subscribedMsg:
		return m.onSubscribed(msg)

	case listsync.SnapshotMsg:
		if !m.current(msg.Gen) {
			return m, nil
		}
		if cmd := m.setTodos(msg.Items); cmd != nil {
			return m, tea.Batch(cmd, m.handle.Next())
		}
		return m, m.handle.Next()

	case listsync.ErrorMsg:
		if !m.current(msg.Gen) {
			return m, nil
		}
		m.setStatus("live update error: "+msg.Err.Error(), true)
		return m, m.handle.Next()

	case listsync.FailedMsg:
		if !m.current(msg.Gen) {
			return m, nil
		}
		m.releaseSubscription()
		m.setStatus("live updates stopped: "+msg.Err.Error()+" (r to retry)", true)
		return m, nil

	case mutation.ResultMsg:
		if msg.Tag != m.epoch || m.state != StateAuthenticated {
			return m, nil
		}
		m.onResult(msg.Result)
		return m, nil

	case signInMsg:
		if msg.err != nil {
			m.deps.Logger.Error("sign-in redirect failed", zap.Error(msg.err))
			m.setStatus("sign-in failed: "+msg.err.Error(), true)
		} else {
			m.setStatus(m.deps.Text.T(i18n.SignInStarted), false)
		}
		return m, nil

	case signOutMsg:
		if msg.err != nil {
			m.deps.Logger.Error("sign-out failed", zap.Error(msg.err))
			m.setStatus("sign-out failed: "+msg.err.Error(), true)
		}
		return m, nil

	case tea.KeyMsg:
		return m.onKey(msg)
	}

	if m.chatFocused() {
		return m, m.chat.Update(msg)
	}
	if m.adding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) onSession(msg sessionMsg) (tea.Model, tea.Cmd) {
	if msg.epoch != m.epoch || m.state != StateResolving {
		return m, nil
	}
	if !msg.res.OK {
		m.state = StateUnauthenticated
		m.displayName = ""
		m.reason = msg.res.Reason
		return m, nil
	}

	coll, err := m.deps.Backend.For(msg.res.Identity.UserID)
	if err != nil {
		m.deps.Logger.Error("open collection", zap.Error(err))
		m.state = StateUnauthenticated
		m.reason = session.ReasonError
		m.setStatus("open todos: "+err.Error(), true)
		return m, nil
	}

	m.state = StateAuthenticated
	m.displayName = msg.res.DisplayName
	m.reason = session.ReasonNone
	m.coll = coll
	m.dispatcher = mutation.New(coll, m.deps.MutationTimeout, m.deps.Logger)
	m.dispatcher.Tag = m.epoch
	sub := m.subscribeCmd(coll)
	if m.showChat {
		// The panel was open when the previous session ended.
		return m, tea.Batch(sub, m.mountChat())
	}
	return m, sub
}

func (m Model) onSubscribed(msg subscribedMsg) (tea.Model, tea.Cmd) {
	if msg.epoch != m.epoch || m.state != StateAuthenticated {
		// Signed out while the subscription was being set up.
		if msg.handle != nil {
			msg.handle.Close()
		}
		return m, nil
	}
	if msg.err != nil {
		m.deps.Logger.Error("subscribe failed", zap.Error(msg.err))
		m.setStatus("live updates unavailable: "+msg.err.Error()+" (r to retry)", true)
		return m, nil
	}
	m.handle = msg.handle
	return m, m.handle.Next()
}

func (m *Model) onResult(res mutation.Result) {
	if res.OK() {
		m.setStatus(string(res.Op)+" ok", false)
		return
	}
	m.setStatus(string(res.Op)+" failed: "+res.Err.Error(), true)
}

// current reports whether gen belongs to the live handle.
func (m Model) current(gen uint64) bool {
	return m.handle != nil && m.handle.Gen() == gen && m.state == StateAuthenticated
}

func (m *Model) setTodos(items model.Snapshot) tea.Cmd {
	m.todos = items.Clone()
	li := make([]list.Item, 0, len(items))
	for _, it := range items {
		li = append(li, listItem{ID: it.ID, Content: it.Content})
	}
	cmd := m.list.SetItems(li)
	if n := len(li); n > 0 && m.list.Index() >= n {
		m.list.Select(n - 1)
	}
	return cmd
}

func (m *Model) releaseSubscription() {
	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status, m.statusErr = s, isErr
}

func (m Model) chatFocused() bool {
	return m.showChat && m.chat != nil && m.chat.Focused() && m.state == StateAuthenticated
}

func (m *Model) toggleChat() tea.Cmd {
	m.showChat = !m.showChat
	if m.showChat {
		return m.mountChat()
	}
	m.unmountChat()
	return nil
}

func (m *Model) mountChat() tea.Cmd {
	m.chat = chat.New()
	cmd := m.chat.Mount()
	m.chat.Blur() // list keeps focus until tab
	m.resize()
	return cmd
}

// unmountChat drops the panel but leaves showChat alone.
func (m *Model) unmountChat() {
	if m.chat != nil {
		m.chat.Unmount()
		m.chat = nil
	}
	m.resize()
}

func (m Model) signOut() (tea.Model, tea.Cmd) {
	m.releaseSubscription()
	m.unmountChat()
	m.epoch++
	m.state = StateUnauthenticated
	m.displayName = ""
	m.reason = session.ReasonNone
	m.coll = nil
	m.dispatcher = nil
	m.adding = false
	m.input.Blur()
	m.input.SetValue("")
	m.setTodos(nil)
	m.setStatus("", false)
	m.deps.Logger.Info("signed out")
	return m, m.signOutCmd()
}

func (m Model) retry() (tea.Model, tea.Cmd) {
	m.epoch++
	m.state = StateResolving
	m.setStatus("", false)
	return m, m.resolveCmd()
}

func (m *Model) resize() {
	if m.width == 0 {
		return
	}
	m.list.SetSize(m.width-4, m.listHeight())
}

func (m Model) listHeight() int {
	h := m.height - 14
	if m.adding {
		h -= 3
	}
	if m.showChat {
		h -= 6 + maxChatLines
	}
	if h < 3 {
		h = 3
	}
	return h
}

const maxChatLines = 8
