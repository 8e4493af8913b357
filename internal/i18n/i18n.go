// Package i18n resolves message ids to display text for a locale.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultLocale = "en"

// Message ids used by the views.
const (
	Welcome         = "welcome"
	MyTodos         = "myTodos"
	AppHosted       = "appHosted"
	SignOut         = "signOut"
	SignInWithAuth0 = "signInWithAuth0"
	ShowChat        = "showChat"
	HideChat        = "hideChat"
	NewTodo         = "newTodo"
	NewTodoPrompt   = "newTodoPrompt"
	SessionExpired  = "sessionExpired"
	SignInStarted   = "signInStarted"
	Resolving       = "resolving"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Catalog is a locale -> id -> text table.
type Catalog struct {
	messages map[string]map[string]string
}

// Load parses the embedded locale files.
func Load() (*Catalog, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	c := &Catalog{messages: make(map[string]map[string]string, len(entries))}
	for _, e := range entries {
		b, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, err
		}
		m := map[string]string{}
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("locale %s: %w", e.Name(), err)
		}
		c.messages[strings.TrimSuffix(e.Name(), ".yaml")] = m
	}
	if _, ok := c.messages[DefaultLocale]; !ok {
		return nil, fmt.Errorf("missing default locale %q", DefaultLocale)
	}
	return c, nil
}

// MustLoad is Load for embedded data that is known to be valid.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Locales lists the available locales.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.messages))
	for l := range c.messages {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Localizer formats messages for one locale, falling back to the default
// locale and finally to the id itself.
type Localizer struct {
	locale string
	cat    *Catalog
}

func (c *Catalog) For(locale string) Localizer {
	if _, ok := c.messages[locale]; !ok {
		locale = DefaultLocale
	}
	return Localizer{locale: locale, cat: c}
}

func (l Localizer) Locale() string { return l.locale }

// T returns the text for id with {name} placeholders filled from vals
// (name, value pairs).
func (l Localizer) T(id string, vals ...string) string {
	msg, ok := l.cat.messages[l.locale][id]
	if !ok {
		if msg, ok = l.cat.messages[DefaultLocale][id]; !ok {
			msg = id
		}
	}
	if len(vals) < 2 {
		return msg
	}
	pairs := make([]string, 0, len(vals))
	for i := 0; i+1 < len(vals); i += 2 {
		pairs = append(pairs, "{"+vals[i]+"}", vals[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}
