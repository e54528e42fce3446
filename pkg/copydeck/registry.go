package copydeck

import (
	"embed"
	"errors"

	"gopkg.in/yaml.v3"

	"github.com/obsidianhq/notifykit/pkg/l10n"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// ErrInvalidTemplates is returned when the embedded template files cannot be
// parsed. This indicates a build-time defect, not a runtime condition.
var ErrInvalidTemplates = errors.New("copydeck: invalid embedded templates")

// EmailTemplate is one locale variant of a transactional email.
type EmailTemplate struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// PushTemplate is one locale variant of a web-push message.
type PushTemplate struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// Meta carries per-template-family delivery metadata. Header fields override
// the renderer defaults when set.
type Meta struct {
	Category        string `yaml:"category"`
	ListUnsubscribe string `yaml:"list_unsubscribe"`
	ListID          string `yaml:"list_id"`
	Precedence      string `yaml:"precedence"`
}

type emailEntry struct {
	Meta    Meta                     `yaml:"meta"`
	Locales map[string]EmailTemplate `yaml:"locales"`
}

type pushEntry struct {
	Locales map[string]PushTemplate `yaml:"locales"`
}

type emailFile struct {
	Aliases   map[string]string     `yaml:"aliases"`
	Templates map[string]emailEntry `yaml:"templates"`
}

type pushFile struct {
	Aliases   map[string]string    `yaml:"aliases"`
	Templates map[string]pushEntry `yaml:"templates"`
}

// Registry resolves event types to locale-specific copy. Immutable after New.
type Registry struct {
	email emailFile
	push  pushFile
}

// New parses the embedded template files into a Registry.
func New() (*Registry, error) {
	r := &Registry{}

	raw, err := templateFS.ReadFile("templates/email.yaml")
	if err != nil {
		return nil, errors.Join(ErrInvalidTemplates, err)
	}
	if err := yaml.Unmarshal(raw, &r.email); err != nil {
		return nil, errors.Join(ErrInvalidTemplates, err)
	}

	raw, err = templateFS.ReadFile("templates/webpush.yaml")
	if err != nil {
		return nil, errors.Join(ErrInvalidTemplates, err)
	}
	if err := yaml.Unmarshal(raw, &r.push); err != nil {
		return nil, errors.Join(ErrInvalidTemplates, err)
	}

	return r, nil
}

// MustNew is New for initialization paths where a parse failure should stop
// the program.
func MustNew() *Registry {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Email returns the email template for an event type in the closest available
// locale, plus the family metadata. Returns nil when no family exists for the
// event type; the caller substitutes its generic default.
func (r *Registry) Email(eventType string, locale l10n.Locale) (*EmailTemplate, Meta) {
	key := resolveAlias(eventType, r.email.Aliases)
	entry, ok := r.email.Templates[key]
	if !ok {
		return nil, Meta{}
	}
	if tmpl, ok := pickLocale(entry.Locales, locale); ok {
		return &tmpl, entry.Meta
	}
	return nil, entry.Meta
}

// Push returns the web-push template for an event type, or nil when the
// family is unknown.
func (r *Registry) Push(eventType string, locale l10n.Locale) *PushTemplate {
	key := resolveAlias(eventType, r.push.Aliases)
	entry, ok := r.push.Templates[key]
	if !ok {
		return nil
	}
	if tmpl, ok := pickLocale(entry.Locales, locale); ok {
		return &tmpl
	}
	return nil
}

func resolveAlias(key string, aliases map[string]string) string {
	if target, ok := aliases[key]; ok {
		return target
	}
	return key
}

// pickLocale tries the requested locale, then the fallback chain, then any
// locale the entry happens to carry.
func pickLocale[T any](locales map[string]T, locale l10n.Locale) (T, bool) {
	if tmpl, ok := locales[string(locale)]; ok {
		return tmpl, true
	}
	for _, fallback := range l10n.FallbackChain {
		if tmpl, ok := locales[string(fallback)]; ok {
			return tmpl, true
		}
	}
	for _, tmpl := range locales {
		return tmpl, true
	}
	var zero T
	return zero, false
}
