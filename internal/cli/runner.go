package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/idilsaglam/cloudtodo/internal/app"
	"github.com/idilsaglam/cloudtodo/internal/auth"
	"github.com/idilsaglam/cloudtodo/internal/model"
	"github.com/idilsaglam/cloudtodo/internal/mutation"
	"github.com/idilsaglam/cloudtodo/internal/session"
	"github.com/idilsaglam/cloudtodo/internal/store"
	"github.com/idilsaglam/cloudtodo/internal/ui"
)

// Runner dispatches subcommands. App carries the same collaborators the
// interactive view uses, so `todo add` and the view see the same data.
type Runner struct {
	In       io.Reader
	Out, Err io.Writer

	Tokens auth.TokenStore
	Parser *auth.TokenParser
	App    app.Deps

	// RunUI mounts the interactive view; nil means app.Run.
	RunUI func(ctx context.Context, deps app.Deps) error
}

// ---------------------------------------------------
// CLI router
// ---------------------------------------------------

// Run dispatches args and returns an exit code (0 ok, 1 error, 2 usage).
func (r *Runner) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return r.doUI(ctx)
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		r.PrintHelp()
		return 0

	case "ui":
		return r.doUI(ctx)

	case "ls":
		return r.doList(ctx)

	case "add":
		if len(a) == 0 {
			ui.Fail(r.Err, "usage: todo add <content...>")
			return 2
		}
		return r.doAdd(ctx, strings.Join(a, " "))

	case "rm":
		if len(a) != 1 {
			ui.Fail(r.Err, "usage: todo rm <id>")
			return 2
		}
		return r.doRemove(ctx, a[0])

	case "auth":
		if len(a) == 0 {
			ui.Fail(r.Err, "usage: todo auth <login|logout|status|whoami|signin>")
			return 2
		}
		switch a[0] {
		case "login":
			return r.doAuthLogin(a[1:])
		case "logout":
			return r.doAuthLogout(ctx)
		case "status":
			return r.doAuthStatus()
		case "whoami":
			return r.doAuthWhoAmI(ctx)
		case "signin":
			return r.doAuthSignIn(ctx)
		default:
			ui.Fail(r.Err, "usage: todo auth <login|logout|status|whoami|signin>")
			return 2
		}
	}

	ui.Fail(r.Err, "unknown subcommand: "+cmd)
	fmt.Fprintln(r.Err)
	r.PrintHelp()
	return 2
}

func (r *Runner) PrintHelp() {
	fmt.Fprintf(r.Out, `todo - your todos, synced

Usage:
  todo [flags] [subcommand] [args]

Subcommands:
  ui                   Interactive view (default)
  ls                   List todos
  add <content...>     Create a todo (content can be multiple words)
  rm <id>              Delete a todo by id (or a unique id prefix)
  auth login [token]   Store an ID token (reads stdin when omitted)
  auth logout          Forget the stored token
  auth status          Show where the token comes from and when it expires
  auth whoami          Show the signed-in identity
  auth signin          Open the hosted sign-in page

Examples:
  todo auth signin
  todo add "Buy milk"
  todo ls
  todo rm 3f2a
`)
}

func (r *Runner) doUI(ctx context.Context) int {
	run := r.RunUI
	if run == nil {
		run = func(ctx context.Context, d app.Deps) error { return app.Run(ctx, d) }
	}
	if err := run(ctx, r.App); err != nil {
		ui.Fail(r.Err, "ui: "+err.Error())
		return 1
	}
	return 0
}

// ---------------------------------------------------
// Auth subcommands
// ---------------------------------------------------

func (r *Runner) doAuthLogin(a []string) int {
	var token string
	if len(a) > 0 {
		token = a[0]
	} else {
		fmt.Fprint(r.Out, "Paste your token: ")
		sc := bufio.NewScanner(r.In)
		if !sc.Scan() {
			msg := "no input"
			if err := sc.Err(); err != nil {
				msg = err.Error()
			}
			ui.Fail(r.Err, "read token: "+msg)
			return 1
		}
		token = sc.Text()
	}

	claims, err := r.Parser.Parse(token)
	if err != nil {
		ui.Fail(r.Err, "token rejected: "+err.Error())
		return 1
	}
	if err := r.Tokens.Save(token, claims); err != nil {
		ui.Fail(r.Err, "save token: "+err.Error())
		return 1
	}
	ui.OK(r.Out, "logged in as "+session.DisplayName(
		auth.Attributes{Email: claims.Email},
		auth.Identity{UserID: claims.Subject, Username: claims.Username()},
	))
	return 0
}

func (r *Runner) doAuthLogout(ctx context.Context) int {
	creds, _ := r.Tokens.Load()
	if creds != nil && creds.Source == auth.SourceEnv {
		ui.OK(r.Out, "token is provided by "+r.Tokens.EnvVar+" env var (nothing to delete)")
		return 0
	}
	if err := r.App.IDP.SignOut(ctx); err != nil {
		ui.Fail(r.Err, "logout: "+err.Error())
		return 1
	}
	ui.OK(r.Out, "logged out")
	return 0
}

func (r *Runner) doAuthStatus() int {
	muted := ui.Current().Muted
	creds, err := r.Tokens.Load()
	if err != nil {
		ui.Fail(r.Err, "status: "+err.Error())
		return 1
	}
	if creds == nil {
		fmt.Fprintln(r.Out, muted.Render("not logged in"))
		fmt.Fprintln(r.Out, "Run: todo auth signin, then todo auth login")
		return 0
	}
	fmt.Fprintf(r.Out, "source: %s\n", creds.Source)
	if creds.Subject != "" {
		fmt.Fprintf(r.Out, "subject: %s\n", creds.Subject)
	}
	if creds.ExpiresAt == nil {
		if c, err := r.Parser.Parse(creds.Token); err == nil && c.ExpiresAt != nil {
			creds.ExpiresAt = &c.ExpiresAt.Time
		}
	}
	switch {
	case creds.ExpiresAt == nil:
		fmt.Fprintln(r.Out, "expires: (unknown)")
	case creds.Expired(time.Now()):
		fmt.Fprintf(r.Out, "expires: %s (expired)\n", creds.ExpiresAt.UTC().Format(time.RFC3339))
	default:
		fmt.Fprintf(r.Out, "expires: %s\n", creds.ExpiresAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(r.Out, "env override: "+r.Tokens.EnvVar)
	return 0
}

func (r *Runner) doAuthWhoAmI(ctx context.Context) int {
	res := r.App.Resolver.Resolve(ctx)
	if !res.OK {
		return r.failSession(res)
	}
	fmt.Fprintf(r.Out, "name:    %s\n", res.DisplayName)
	fmt.Fprintf(r.Out, "user id: %s\n", res.Identity.UserID)
	if res.Identity.Username != "" {
		fmt.Fprintf(r.Out, "username: %s\n", res.Identity.Username)
	}
	if res.Identity.ExpiresAt != nil {
		fmt.Fprintf(r.Out, "expires: %s\n", res.Identity.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return 0
}

func (r *Runner) doAuthSignIn(ctx context.Context) int {
	if err := r.App.IDP.SignInRedirect(ctx, r.App.Provider); err != nil {
		ui.Fail(r.Err, "signin: "+err.Error())
		return 1
	}
	ui.OK(r.Out, "opened the "+r.App.Provider.Custom+" sign-in page")
	fmt.Fprintln(r.Out, ui.Current().Muted.Render("Then run `todo auth login` with the issued ID token."))
	return 0
}

func (r *Runner) failSession(res session.Result) int {
	if res.Reason == session.ReasonExpired {
		ui.Fail(r.Err, "session expired. Run: todo auth signin")
	} else {
		ui.Fail(r.Err, "not logged in. Run: todo auth signin")
	}
	return 2
}

// ---------------------------------------------------
// Core subcommands
// ---------------------------------------------------

// collection resolves the session and opens the signed-in user's todos.
func (r *Runner) collection(ctx context.Context) (store.Collection, int) {
	res := r.App.Resolver.Resolve(ctx)
	if !res.OK {
		return nil, r.failSession(res)
	}
	coll, err := r.App.Backend.For(res.Identity.UserID)
	if err != nil {
		ui.Fail(r.Err, "open todos: "+err.Error())
		return nil, 1
	}
	return coll, 0
}

// snapshot takes the first update of a fresh subscription.
func snapshot(ctx context.Context, coll store.Collection, timeout time.Duration) (model.Snapshot, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	sub, err := coll.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case u, ok := <-sub.Updates():
		if !ok {
			return nil, store.ErrClosed
		}
		return u.Items, u.Err
	}
}

func (r *Runner) doList(ctx context.Context) int {
	coll, code := r.collection(ctx)
	if coll == nil {
		return code
	}
	items, err := snapshot(ctx, coll, r.App.MutationTimeout)
	if err != nil {
		ui.Fail(r.Err, "list: "+err.Error())
		return 1
	}

	t := ui.Current()
	lines := []string{
		fmt.Sprintf("%s  %s %d", t.Title.Render("Todos"), t.Accent.Render("Total"), len(items)),
		"",
	}
	if len(items) == 0 {
		lines = append(lines, t.Muted.Render("no todos yet"))
	}
	for _, it := range items {
		content := it.Content
		if strings.TrimSpace(content) == "" {
			content = t.Muted.Render("(empty)")
		} else {
			content = ansi.Truncate(content, 80, "...")
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", t.Muted.Render(shortID(it.ID)), t.Bullet, content))
	}
	lines = append(lines, "", t.Muted.Render("Tip: add with `todo add \"Buy milk\"`"))
	fmt.Fprintln(r.Out, ui.Panel(lines))
	return 0
}

func (r *Runner) doAdd(ctx context.Context, content string) int {
	coll, code := r.collection(ctx)
	if coll == nil {
		return code
	}
	res := mutation.New(coll, r.App.MutationTimeout, r.App.Logger).Create(ctx, content)
	if !res.OK() {
		ui.Fail(r.Err, "add: "+res.Err.Error())
		return 1
	}
	ui.OK(r.Out, "added "+shortID(res.ID))
	return 0
}

func (r *Runner) doRemove(ctx context.Context, ref string) int {
	coll, code := r.collection(ctx)
	if coll == nil {
		return code
	}
	id, err := r.resolveID(ctx, coll, ref)
	if err != nil {
		ui.Fail(r.Err, "rm: "+err.Error())
		fmt.Fprintln(r.Err, ui.Current().Muted.Render("Hint: run `todo ls` to see ids"))
		return 2
	}
	res := mutation.New(coll, r.App.MutationTimeout, r.App.Logger).Delete(ctx, id)
	if !res.OK() {
		if errors.Is(res.Err, store.ErrNotFound) {
			ui.Fail(r.Err, "rm: no todo "+ref)
			return 2
		}
		ui.Fail(r.Err, "rm: "+res.Err.Error())
		return 1
	}
	ui.OK(r.Out, "removed")
	return 0
}

// resolveID expands a unique id prefix as printed by ls.
func (r *Runner) resolveID(ctx context.Context, coll store.Collection, ref string) (string, error) {
	items, err := snapshot(ctx, coll, r.App.MutationTimeout)
	if err != nil {
		return "", err
	}
	var match string
	for _, it := range items {
		if it.ID == ref {
			return ref, nil
		}
	}
	for _, it := range items {
		if strings.HasPrefix(it.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("ambiguous id %q", ref)
			}
			match = it.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no todo %s", ref)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Stdio returns a Runner bound to the process streams.
func Stdio() *Runner {
	return &Runner{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}
