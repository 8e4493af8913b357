package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idilsaglam/cloudtodo/internal/app"
	"github.com/idilsaglam/cloudtodo/internal/auth"
	"github.com/idilsaglam/cloudtodo/internal/config"
	"github.com/idilsaglam/cloudtodo/internal/i18n"
	"github.com/idilsaglam/cloudtodo/internal/listsync"
	"github.com/idilsaglam/cloudtodo/internal/model"
	"github.com/idilsaglam/cloudtodo/internal/session"
	"github.com/idilsaglam/cloudtodo/internal/store/jsonstore"
	"github.com/idilsaglam/cloudtodo/internal/store/memstore"
)

const secret = "cli-secret"

type harness struct {
	r      *Runner
	out    *bytes.Buffer
	errs   *bytes.Buffer
	store  *memstore.Store
	opened []string
}

func newHarness(t *testing.T, seed ...model.Item) *harness {
	t.Helper()
	h := &harness{out: &bytes.Buffer{}, errs: &bytes.Buffer{}, store: memstore.New(seed...)}

	parser, err := auth.NewTokenParser(secret, "", "", "")
	require.NoError(t, err)
	tokens := auth.TokenStore{Dir: t.TempDir(), EnvVar: "CLOUDTODO_CLI_TEST_TOKEN"}
	hosted := auth.HostedUI{Domain: "auth.example.com", ClientID: "client-1", Scopes: "openid email"}
	open := func(u string) error {
		h.opened = append(h.opened, u)
		return nil
	}
	logger := zap.NewNop()
	idp := auth.NewTokenProvider(tokens, parser, hosted, open, logger)

	h.r = &Runner{
		In:     strings.NewReader(""),
		Out:    h.out,
		Err:    h.errs,
		Tokens: tokens,
		Parser: parser,
		App: app.Deps{
			IDP:             idp,
			Resolver:        session.NewResolver(idp, logger),
			Backend:         h.store,
			Sync:            listsync.New(listsync.DefaultRetryPolicy, logger),
			Text:            i18n.MustLoad().For("en"),
			Provider:        auth.ProviderConfig{Custom: "Auth0"},
			MutationTimeout: time.Second,
			Logger:          logger,
		},
	}
	return h
}

func token(t *testing.T, ttl time.Duration) string {
	t.Helper()
	c := auth.Claims{
		Email:           "ada@example.com",
		CognitoUsername: "auth0_ada",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func (h *harness) run(args ...string) int {
	h.out.Reset()
	h.errs.Reset()
	return h.r.Run(context.Background(), args)
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.Equal(t, 0, h.run("auth", "login", token(t, time.Hour)), h.errs.String())
}

func TestHelpAndUsage(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 0, h.run("help"))
	assert.Contains(t, h.out.String(), "auth signin")

	assert.Equal(t, 2, h.run("bogus"))
	assert.Contains(t, h.errs.String(), "unknown subcommand: bogus")

	assert.Equal(t, 2, h.run("add"))
	assert.Equal(t, 2, h.run("rm"))
	assert.Equal(t, 2, h.run("auth"))
	assert.Equal(t, 2, h.run("auth", "nope"))
}

func TestNoArgsRunsUI(t *testing.T) {
	h := newHarness(t)
	var got app.Deps
	h.r.RunUI = func(_ context.Context, d app.Deps) error {
		got = d
		return nil
	}
	assert.Equal(t, 0, h.run())
	assert.Equal(t, "Auth0", got.Provider.Custom)

	h.r.RunUI = func(context.Context, app.Deps) error { return errors.New("no tty") }
	assert.Equal(t, 1, h.run("ui"))
	assert.Contains(t, h.errs.String(), "no tty")
}

func TestCommandsRequireSession(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 2, h.run("ls"))
	assert.Contains(t, h.errs.String(), "not logged in")
	assert.Equal(t, 2, h.run("add", "milk"))
	assert.Empty(t, h.store.Items())
}

func TestLoginStatusWhoAmILogout(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 0, h.run("auth", "status"))
	assert.Contains(t, h.out.String(), "not logged in")

	h.login(t)
	assert.Contains(t, h.out.String(), "logged in as ada@example.com")

	assert.Equal(t, 0, h.run("auth", "status"))
	assert.Contains(t, h.out.String(), "source: file")
	assert.Contains(t, h.out.String(), "subject: user-1")
	assert.Contains(t, h.out.String(), "env override: CLOUDTODO_CLI_TEST_TOKEN")

	assert.Equal(t, 0, h.run("auth", "whoami"))
	assert.Contains(t, h.out.String(), "user id: user-1")
	assert.Contains(t, h.out.String(), "username: auth0_ada")

	assert.Equal(t, 0, h.run("auth", "logout"))
	assert.Equal(t, 2, h.run("auth", "whoami"))
}

func TestLoginFromStdin(t *testing.T) {
	h := newHarness(t)
	h.r.In = strings.NewReader(token(t, time.Hour) + "\n")

	assert.Equal(t, 0, h.run("auth", "login"))
	assert.FileExists(t, filepath.Join(h.r.Tokens.Dir, "credentials.json"))
}

func TestLoginRejectsBadTokens(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("auth", "login", "not-a-jwt"))
	assert.Contains(t, h.errs.String(), "token rejected")

	assert.Equal(t, 1, h.run("auth", "login", token(t, -time.Minute)))
	assert.Contains(t, h.errs.String(), "expired")
}

func TestExpiredSessionMessage(t *testing.T) {
	h := newHarness(t)
	t.Setenv("CLOUDTODO_CLI_TEST_TOKEN", token(t, -time.Minute))

	assert.Equal(t, 2, h.run("ls"))
	assert.Contains(t, h.errs.String(), "session expired")
}

func TestLogoutWithEnvToken(t *testing.T) {
	h := newHarness(t)
	t.Setenv("CLOUDTODO_CLI_TEST_TOKEN", token(t, time.Hour))

	assert.Equal(t, 0, h.run("auth", "logout"))
	assert.Contains(t, h.out.String(), "nothing to delete")
}

func TestSignInOpensHostedUI(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 0, h.run("auth", "signin"))
	require.Len(t, h.opened, 1)
	assert.Contains(t, h.opened[0], "https://auth.example.com/oauth2/authorize")
	assert.Contains(t, h.opened[0], "identity_provider=Auth0")
}

func TestAddListRemove(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	assert.Equal(t, 0, h.run("ls"))
	assert.Contains(t, h.out.String(), "no todos yet")

	assert.Equal(t, 0, h.run("add", "buy", "milk"))
	assert.Contains(t, h.out.String(), "added")
	items := h.store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "buy milk", items[0].Content)

	assert.Equal(t, 0, h.run("ls"))
	assert.Contains(t, h.out.String(), "buy milk")
	assert.Contains(t, h.out.String(), items[0].ID[:8])

	assert.Equal(t, 0, h.run("rm", items[0].ID[:8]))
	assert.Empty(t, h.store.Items())

	assert.Equal(t, 2, h.run("rm", "nope"))
	assert.Contains(t, h.errs.String(), "no todo nope")
}

func TestRemoveAmbiguousPrefix(t *testing.T) {
	h := newHarness(t,
		model.Item{ID: "abc-1", Content: "one"},
		model.Item{ID: "abc-2", Content: "two"},
	)
	h.login(t)

	assert.Equal(t, 2, h.run("rm", "abc"))
	assert.Contains(t, h.errs.String(), "ambiguous")
	assert.Len(t, h.store.Items(), 2)

	assert.Equal(t, 0, h.run("rm", "abc-2"))
	assert.Len(t, h.store.Items(), 1)
}

func TestOpenBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	b, err := openBackend(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, b)

	cfg.Backend = config.BackendJSON
	cfg.DataPath = filepath.Join(t.TempDir(), "todos.json")
	b, err = openBackend(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &jsonstore.Store{}, b)

	cfg.Backend = "redis"
	_, err = openBackend(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestListTruncatesWideContent(t *testing.T) {
	h := newHarness(t,
		model.Item{ID: "wide-1", Content: strings.Repeat("é", 100)},
		model.Item{ID: "wide-2", Content: strings.Repeat("日", 50)},
	)
	h.login(t)

	assert.Equal(t, 0, h.run("ls"))
	out := h.out.String()
	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, strings.Repeat("é", 77)+"...")
	assert.NotContains(t, out, strings.Repeat("é", 78))
	assert.Contains(t, out, strings.Repeat("日", 38)+"...")
}
