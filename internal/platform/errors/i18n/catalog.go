// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// BaseLocale is the fallback locale for error messages.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[string]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}
	matcher    language.Matcher
	tags       []language.Tag
	locales    []string
)

// Register adds a catalog for a locale. Later registrations for the same
// locale replace earlier ones. Intended to be called from package init.
func Register(locale string, messages map[string]string) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	if _, ok := catalogs[locale]; !ok {
		tags = append(tags, language.Make(locale))
		locales = append(locales, locale)
		matcher = language.NewMatcher(tags)
	}
	catalogs[locale] = &Catalog{locale: locale, messages: messages}
}

// GetCatalog returns the best catalog for the given locale.
// Falls back to en-US when the locale is unknown.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}

	catalogsMu.RLock()
	defer catalogsMu.RUnlock()

	if c, ok := catalogs[requested]; ok {
		return c
	}
	if matcher != nil {
		if _, idx, conf := matcher.Match(language.Make(requested)); conf > language.No {
			if c, ok := catalogs[locales[idx]]; ok {
				return c
			}
		}
	}
	if c, ok := catalogs[BaseLocale]; ok {
		return c
	}
	return &Catalog{locale: BaseLocale, messages: map[string]string{}}
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template for a code with the given metadata.
// Unknown codes fall back to a generic message.
func (c *Catalog) Format(code string, metadata map[string]string) string {
	tmplText, ok := c.messages[code]
	if !ok {
		tmplText, ok = c.messages["UNKNOWN"]
		if !ok {
			return "an unexpected error occurred"
		}
	}

	tmpl, err := template.New(code).Parse(tmplText)
	if err != nil {
		return tmplText
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return tmplText
	}
	return buf.String()
}
