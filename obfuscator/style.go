package obfuscator

import (
	"strings"
)

// Declaration is one CSS property/value pair
type Declaration struct {
	Property string
	Value    string
}

// ParseDeclarations reads a flat style string. Declarations may be split by
// semicolons or newlines; empty and colon-less entries are dropped.
func ParseDeclarations(css string) []Declaration {
	fields := strings.FieldsFunc(css, func(r rune) bool {
		return r == ';' || r == '\n' || r == '\r'
	})

	decls := make([]Declaration, 0, len(fields))
	for _, field := range fields {
		prop, value, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(prop)
		value = strings.TrimSpace(value)
		if prop == "" || value == "" {
			continue
		}
		if !strings.HasPrefix(prop, "--") {
			prop = strings.ToLower(prop)
		}
		decls = append(decls, Declaration{Property: prop, Value: value})
	}
	return decls
}

// NormalizeCSS rewrites user CSS as "prop: value;" pairs on one line
func NormalizeCSS(css string) string {
	decls := ParseDeclarations(css)
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.Property + ": " + d.Value + ";"
	}
	return strings.Join(parts, " ")
}

// NormalizeClasses collapses a class list to single spaces
func NormalizeClasses(classes string) string {
	return strings.Join(strings.Fields(classes), " ")
}

// JSXStyle renders declarations as an inline style object, e.g.
// {{marginLeft:'55px', color:'red'}}
func JSXStyle(decls []Declaration) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		key := camelCase(d.Property)
		if strings.HasPrefix(d.Property, "--") {
			key = jsQuote(d.Property)
		}
		parts[i] = key + ":" + jsQuote(d.Value)
	}
	return "{{" + strings.Join(parts, ", ") + "}}"
}

// camelCase maps a CSS property to its DOM style name: margin-left becomes
// marginLeft, -webkit-transform becomes WebkitTransform and -ms-filter
// becomes msFilter.
func camelCase(prop string) string {
	if strings.HasPrefix(prop, "-ms-") {
		prop = prop[1:]
	}

	var sb strings.Builder
	upper := false
	for _, r := range prop {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			sb.WriteString(strings.ToUpper(string(r)))
			upper = false
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
