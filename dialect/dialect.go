// Package dialect selects between the two output shapes the generators
// emit: plain markup with an inline script, or a component snippet.
package dialect

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/defenra/bidi/assets"
)

type Dialect int

const (
	Plain Dialect = iota
	Component
)

// Parse maps user-facing names onto a dialect
func Parse(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain", "html", "script":
		return Plain, nil
	case "component", "react", "jsx":
		return Component, nil
	}
	return Plain, fmt.Errorf("unknown output dialect %q", s)
}

func (d Dialect) String() string {
	if d == Component {
		return "component"
	}
	return "plain"
}

// ClassAttr is the attribute name used for class lists
func (d Dialect) ClassAttr() string {
	if d == Component {
		return "className"
	}
	return "class"
}

func (d Dialect) ext() string {
	if d == Component {
		return "jsx"
	}
	return "html"
}

func (d Dialect) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Dialect) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var (
	templates     *template.Template
	templatesOnce sync.Once
)

// JSX uses {{ }} for inline style objects, so templates use [[ ]].
func loadTemplates() *template.Template {
	templatesOnce.Do(func() {
		templates = template.Must(template.New("bidi").
			Delims("[[", "]]").
			ParseFS(assets.Templates(), "*.tmpl"))
	})
	return templates
}

// Render executes the template "<name>.<ext>.tmpl" for the dialect.
// Templates are static and covered by tests, so an execution failure is
// a programming error and panics.
func Render(d Dialect, name string, data any) string {
	var sb strings.Builder
	file := name + "." + d.ext() + ".tmpl"
	if err := loadTemplates().ExecuteTemplate(&sb, file, data); err != nil {
		panic(fmt.Sprintf("render %s: %v", file, err))
	}
	return sb.String()
}
