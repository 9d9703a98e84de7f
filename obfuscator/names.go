package obfuscator

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"strings"
	"unicode/utf16"
)

// nameGenerator produces throwaway identifiers for generated script. It is
// seeded, never global, so the same payload and settings give the same code.
type nameGenerator struct {
	rng  *rand.Rand
	used map[string]bool
}

func newNameGenerator(seed int64, payload string, entropy int) *nameGenerator {
	return &nameGenerator{
		rng:  seededRand(seed, payload, entropy),
		used: make(map[string]bool),
	}
}

func seededRand(seed int64, payload string, entropy int) *rand.Rand {
	s := uint64(seed)
	if seed == 0 {
		h := fnv.New64a()
		h.Write([]byte(payload))
		h.Write([]byte{byte(entropy)})
		s = h.Sum64()
	}
	return rand.New(rand.NewPCG(s, s>>1|1))
}

// varName returns a unique identifier in one of several
// legitimate-looking shapes
func (g *nameGenerator) varName() string {
	for {
		name := g.candidate()
		if !g.used[name] {
			g.used[name] = true
			return name
		}
	}
}

func (g *nameGenerator) candidate() string {
	const chars = "abcdefghijklmnopqrstuvwxyz"
	letter := func() string { return string(chars[g.rng.IntN(len(chars))]) }

	switch g.rng.IntN(5) {
	case 0:
		return fmt.Sprintf("_%s%d", letter(), g.rng.IntN(999))
	case 1:
		return "_0x" + g.hex(4)
	case 2:
		return fmt.Sprintf("_%s_%s", letter(), letter())
	case 3:
		return fmt.Sprintf("$%s%d", letter(), g.rng.IntN(99))
	default:
		return fmt.Sprintf("_%d%s", g.rng.IntN(9), letter())
	}
}

func (g *nameGenerator) hex(length int) string {
	const digits = "0123456789abcdef"
	b := make([]byte, length)
	for i := range b {
		b[i] = digits[g.rng.IntN(len(digits))]
	}
	return string(b)
}

// hostID names the element a shadow root is attached to
func (g *nameGenerator) hostID() string {
	return "bidi-" + g.hex(8)
}

// fromCharCode spells s as String.fromCharCode over UTF-16 code units so
// the literal carries no readable text.
func fromCharCode(s string) string {
	units := utf16.Encode([]rune(s))
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = strconv.Itoa(int(u))
	}
	return "String.fromCharCode(" + strings.Join(parts, ",") + ")"
}

// jsQuote returns a single-quoted JavaScript string literal. "</" is split
// so the literal cannot close an enclosing script element.
func jsQuote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for i, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\u2028':
			sb.WriteString(`\u2028`)
		case '\u2029':
			sb.WriteString(`\u2029`)
		case '/':
			if i > 0 && s[i-1] == '<' {
				sb.WriteString(`\/`)
			} else {
				sb.WriteRune(r)
			}
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\x%02x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
