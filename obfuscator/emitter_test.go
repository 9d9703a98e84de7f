package obfuscator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defenra/bidi/config"
	"github.com/defenra/bidi/dialect"
)

func TestObfuscatePlain(t *testing.T) {
	payload := "test@example.com"
	out := Obfuscate(payload, config.DefaultObfuscation())

	assert.Contains(t, out.Raw, "display:flex")
	assert.Contains(t, out.Raw, "span")
	assert.Contains(t, out.Raw, "order:")
	assert.NotContains(t, out.Raw, payload)
	assert.NotEqual(t, payload, out.Raw)
	assert.NotEmpty(t, out.PreviewHTML)
}

func TestObfuscateNeverContiguous(t *testing.T) {
	payloads := []string{"test@example.com", "Meet me at 10pm", "passwort-Über"}
	dialects := []dialect.Dialect{dialect.Plain, dialect.Component}

	for _, payload := range payloads {
		for _, d := range dialects {
			for _, cloak := range []bool{false, true} {
				for entropy := 1; entropy <= 5; entropy++ {
					cfg := config.DefaultObfuscation()
					cfg.OutputDialect = d
					cfg.Cloak = cloak
					cfg.Entropy = entropy
					out := Obfuscate(payload, cfg)
					assert.NotContains(t, out.Raw, payload, "%s cloak=%v entropy=%d", d, cloak, entropy)
				}
			}
		}
	}
}

// Payloads that are themselves markup vocabulary show up in the tags and
// styles, never in the text a scraper reads.
func TestObfuscateMarkupWordPayloads(t *testing.T) {
	for _, payload := range []string{"display", "flex", "span"} {
		t.Run(payload, func(t *testing.T) {
			cfg := config.DefaultObfuscation()
			cfg.Entropy = 2
			out, tree := Build(payload, cfg)

			assert.Contains(t, out.Raw, payload)
			assert.NotContains(t, tree.HostText(), payload)
			assert.Equal(t, payload, tree.VisibleText())
			assert.Equal(t, StatusFragmented, Simulate(tree, payload).Status)
		})
	}
}

func TestObfuscateShadow(t *testing.T) {
	cfg := config.DefaultObfuscation()
	cfg.Cloak = true

	t.Run("plain", func(t *testing.T) {
		out := Obfuscate("test@example.com", cfg)
		assert.Contains(t, out.Raw, "attachShadow({mode: 'closed'})")
		assert.Contains(t, out.Raw, ".innerHTML =")
		assert.Equal(t, 1, strings.Count(out.Raw, "innerHTML"))
		assert.Contains(t, out.Raw, `<div id="bidi-`)
	})

	t.Run("char codes at high entropy", func(t *testing.T) {
		high := cfg
		for entropy := charCodeEntropy; entropy <= config.MaxEntropy; entropy++ {
			high.Entropy = entropy
			for _, d := range []dialect.Dialect{dialect.Plain, dialect.Component} {
				high.OutputDialect = d
				out := Obfuscate("test@example.com", high)
				assert.Contains(t, out.Raw, "String.fromCharCode(", "%s entropy=%d", d, entropy)
				assert.Contains(t, out.Raw, "<span style=", "%s entropy=%d", d, entropy)
				assert.Contains(t, out.Raw, "order:", "%s entropy=%d", d, entropy)
				assert.Contains(t, out.Raw, "display:flex", "%s entropy=%d", d, entropy)
				assert.NotContains(t, out.Raw, "test@", "%s entropy=%d", d, entropy)
			}
		}
	})

	t.Run("char code literal keeps the skeleton", func(t *testing.T) {
		n := &Node{Tag: "div", CSSText: "display:flex", Children: []*Node{
			{Tag: "span", CSSText: "order:1", Children: []*Node{{Text: "b<"}}},
			{Tag: "span", CSSText: "order:0", Children: []*Node{{Text: "a"}}},
		}}
		assert.Equal(t,
			`'<div style="display:flex"><span style="order:1">'+String.fromCharCode(98,38,108,116,59)+'<\/span><span style="order:0">'+String.fromCharCode(97)+'<\/span><\/div>'`,
			charCodeLiteral(n))
		assert.Equal(t, "''", charCodeLiteral(&Node{Text: ""}))
	})

	t.Run("component", func(t *testing.T) {
		component := cfg
		component.OutputDialect = dialect.Component
		out := Obfuscate("test@example.com", component)
		assert.Contains(t, out.Raw, "import React")
		assert.Contains(t, out.Raw, "useRef")
		assert.Contains(t, out.Raw, "attachShadow({mode: 'closed'})")
		assert.Contains(t, out.Raw, "shadow.innerHTML")
		assert.Contains(t, out.Raw, "<div ref={hostRef} />")
	})
}

func TestObfuscateWrappers(t *testing.T) {
	cases := []struct {
		name    string
		mode    config.WrapperMode
		value   string
		dialect dialect.Dialect
		want    []string
	}{
		{
			name:  "tailwind plain",
			mode:  config.WrapperTailwind,
			value: "bg-red-500 p-4 rounded",
			want:  []string{`<div class="bg-red-500 p-4 rounded">`},
		},
		{
			name:  "css plain",
			mode:  config.WrapperCSS,
			value: "background: blue\npadding: 20px",
			want:  []string{`<div style="background: blue; padding: 20px;">`},
		},
		{
			name:    "tailwind component",
			mode:    config.WrapperTailwind,
			value:   "bg-green-500",
			dialect: dialect.Component,
			want:    []string{`className="bg-green-500"`},
		},
		{
			name:    "css component",
			mode:    config.WrapperCSS,
			value:   "margin-left: 55px\ncolor: red",
			dialect: dialect.Component,
			want:    []string{"marginLeft:'55px'", "color:'red'"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultObfuscation()
			cfg.WrapperMode = tc.mode
			cfg.WrapperValue = tc.value
			cfg.OutputDialect = tc.dialect
			out := Obfuscate("Hidden Text", cfg)
			for _, want := range tc.want {
				assert.Contains(t, out.Raw, want)
			}
		})
	}
}

func TestObfuscatePreviewComplete(t *testing.T) {
	cfg := config.DefaultObfuscation()
	cfg.WrapperMode = config.WrapperCSS
	cfg.WrapperValue = "margin-left: 55px\ncolor: red"
	cfg.OutputDialect = dialect.Component

	out := Obfuscate("Hidden Text", cfg)
	assert.Contains(t, out.PreviewHTML, `<span class="text-pink-400">&lt;div style={{marginLeft`)
	assert.Contains(t, out.PreviewHTML, "55px")
	assert.Contains(t, out.PreviewHTML, "red")
	assert.NotContains(t, out.PreviewHTML, "{{...}}")
	assert.NotContains(t, out.PreviewHTML, "...")
}

func TestObfuscateEmptyWrapperValue(t *testing.T) {
	cfg := config.DefaultObfuscation()
	cfg.WrapperMode = config.WrapperCSS
	cfg.WrapperValue = " ;\n "
	out := Obfuscate("abc", cfg)
	assert.True(t, strings.HasPrefix(out.Raw, `<div style="display:flex;white-space:pre">`), out.Raw)
}

func TestObfuscateBestEffort(t *testing.T) {
	cfg := config.DefaultObfuscation()
	cfg.WrapperMode = "bootstrap"
	cfg.ComponentName = "not valid"
	cfg.OutputDialect = dialect.Component
	cfg.Entropy = 99

	out := Obfuscate("abc", cfg)
	assert.Contains(t, out.Raw, "export default function "+config.DefaultComponentName+"()")
}

func TestObfuscateDeterministic(t *testing.T) {
	cfg := config.DefaultObfuscation()
	cfg.Cloak = true
	a := Obfuscate("test@example.com", cfg)
	b := Obfuscate("test@example.com", cfg)
	assert.Equal(t, a, b)

	cfg.Seed = 7
	c := Obfuscate("test@example.com", cfg)
	assert.NotEqual(t, a.Raw, c.Raw)
}

func TestEmitEscapesText(t *testing.T) {
	cfg := config.DefaultObfuscation()
	out := Obfuscate("<b>&'x'</b>", cfg)
	assert.NotContains(t, out.Raw, "<b>")
	assert.Contains(t, out.Raw, "&lt;")

	cfg.OutputDialect = dialect.Component
	out = Obfuscate("</script>", cfg)
	assert.NotContains(t, out.Raw, "</script>")
}

func TestEmitComponentText(t *testing.T) {
	cfg := config.DefaultObfuscation()
	cfg.OutputDialect = dialect.Component
	cfg.ComponentName = "ContactEmail"

	out := Obfuscate("test@example.com", cfg)
	require.Contains(t, out.Raw, "export default function ContactEmail()")
	assert.Contains(t, out.Raw, "style={{display:'flex', whiteSpace:'pre'}}")
	assert.Contains(t, out.Raw, "<span style={{order:'1'}}>{'@exa'}</span>")
}

func TestJSQuote(t *testing.T) {
	cases := map[string]string{
		"plain":       `'plain'`,
		"it's":        `'it\'s'`,
		`a\b`:         `'a\\b'`,
		"line\nbreak": `'line\nbreak'`,
		"</script>":   `'<\/script>'`,
		"\x01":        `'\x01'`,
		"\u2028":      `'\u2028'`,
		"ünïcode 👍":   "'ünïcode 👍'",
	}
	for in, want := range cases {
		assert.Equal(t, want, jsQuote(in), in)
	}
}

func TestFromCharCode(t *testing.T) {
	assert.Equal(t, "String.fromCharCode(104,105)", fromCharCode("hi"))
	assert.Equal(t, "String.fromCharCode(55357,56397)", fromCharCode("👍"))
}

func TestNameGenerator(t *testing.T) {
	g := newNameGenerator(0, "payload", 1)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		name := g.varName()
		assert.False(t, seen[name], name)
		seen[name] = true
		assert.Regexp(t, `^[_$][A-Za-z0-9_]+$`, name)
	}
	assert.Regexp(t, `^bidi-[0-9a-f]{8}$`, g.hostID())

	a := newNameGenerator(0, "payload", 1).varName()
	b := newNameGenerator(0, "payload", 1).varName()
	assert.Equal(t, a, b)
}
