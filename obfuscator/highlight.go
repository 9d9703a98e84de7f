package obfuscator

import (
	"html"
	"strings"
)

const (
	classTag     = "text-pink-400"
	classString  = "text-emerald-300"
	classKeyword = "text-violet-400"
	classComment = "text-slate-500"
)

var jsKeywords = map[string]bool{
	"import": true, "from": true, "export": true, "default": true,
	"function": true, "return": true, "const": true, "let": true, "var": true,
	"if": true, "else": true, "do": true, "while": true, "for": true,
	"new": true, "true": true, "false": true, "null": true,
}

// Highlight renders generated code as escaped HTML with span-wrapped
// tokens. Every byte of the input is reproduced; nothing is elided.
func Highlight(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw) * 2)

	plainStart := 0
	flushPlain := func(end int) {
		if end > plainStart {
			sb.WriteString(html.EscapeString(raw[plainStart:end]))
		}
	}
	emit := func(class string, start, end int) {
		flushPlain(start)
		sb.WriteString(`<span class="` + class + `">`)
		sb.WriteString(html.EscapeString(raw[start:end]))
		sb.WriteString(`</span>`)
		plainStart = end
	}

	i := 0
	for i < len(raw) {
		c := raw[i]
		switch {
		case c == '<' && isTagStart(raw, i):
			end := scanTag(raw, i)
			emit(classTag, i, end)
			i = end
		case (c == '\'' || c == '"' || c == '`') && opensString(raw, i):
			end := scanString(raw, i)
			emit(classString, i, end)
			i = end
		case c == '/' && i+1 < len(raw) && raw[i+1] == '/' && (i == 0 || raw[i-1] == ' ' || raw[i-1] == '\n'):
			end := strings.IndexByte(raw[i:], '\n')
			if end < 0 {
				end = len(raw)
			} else {
				end += i
			}
			emit(classComment, i, end)
			i = end
		case isIdentByte(c) && (i == 0 || !isIdentByte(raw[i-1])):
			end := i
			for end < len(raw) && isIdentByte(raw[end]) {
				end++
			}
			if jsKeywords[raw[i:end]] {
				emit(classKeyword, i, end)
			}
			i = end
		default:
			i++
		}
	}
	flushPlain(len(raw))
	return sb.String()
}

func isTagStart(s string, i int) bool {
	if i+1 >= len(s) {
		return false
	}
	next := s[i+1]
	if next == '/' && i+2 < len(s) {
		next = s[i+2]
	}
	return next == '>' || (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z')
}

// scanTag finds the '>' closing a tag, skipping quoted attribute values
// and JSX expression braces.
func scanTag(s string, i int) int {
	depth := 0
	var quote byte
	for j := i + 1; j < len(s); j++ {
		c := s[j]
		switch {
		case quote != 0:
			if c == '\\' {
				j++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
		case c == '>' && depth == 0:
			return j + 1
		}
	}
	return len(s)
}

// opensString guesses whether a quote starts a JS literal rather than
// being an apostrophe in text content.
func opensString(s string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch c := s[j]; {
		case c == ' ' || c == '\t':
			continue
		case strings.IndexByte("\n=(,:[{+?!&|;", c) >= 0:
			return true
		case isIdentByte(c):
			start := j
			for start > 0 && isIdentByte(s[start-1]) {
				start--
			}
			return stringKeywords[s[start : j+1]]
		default:
			return false
		}
	}
	return true
}

var stringKeywords = map[string]bool{"from": true, "import": true, "return": true, "case": true}

func scanString(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		case '\n':
			if quote != '`' {
				return j
			}
		}
	}
	return len(s)
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
