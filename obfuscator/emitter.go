package obfuscator

import (
	"html"
	"log"
	"strings"

	"github.com/defenra/bidi/config"
	"github.com/defenra/bidi/dialect"
)

// Entropy at which the cloaked chunk text is spelled as char codes
const charCodeEntropy = 3

// Output is the embeddable code plus its highlighted preview
type Output struct {
	Raw         string `json:"raw"`
	PreviewHTML string `json:"previewHtml"`
}

// Obfuscate runs the whole pipeline: chunk, cloak, emit
func Obfuscate(text string, cfg config.ObfuscationConfig) Output {
	out, _ := Build(text, cfg)
	return out
}

// Build is Obfuscate that also hands back the render tree, for callers
// that want to run Simulate against it.
func Build(text string, cfg config.ObfuscationConfig) (Output, *RenderTree) {
	if err := cfg.Normalize(); err != nil {
		log.Printf("[Obfuscator] %v, continuing best effort", err)
	}

	mode := Exposed
	if cfg.Cloak {
		mode = Encapsulated
	}

	chunks := EncodeSeeded(text, cfg.Entropy, cfg.Seed)
	tree := Cloak(chunks, mode, CloakOptions{Decoys: cfg.Decoys, Seed: cfg.Seed})
	return Emit(tree, cfg), tree
}

type obfuscateData struct {
	Cloaked   bool
	Name      string
	WrapOpen  string
	WrapClose string
	Body      string
	HostID    string
	HostVar   string
	Literal   string
}

// Emit serializes a render tree into the configured dialect
func Emit(tree *RenderTree, cfg config.ObfuscationConfig) Output {
	names := newNameGenerator(cfg.Seed, tree.VisibleText(), cfg.Entropy)
	wrapper := wrapperNode(cfg)

	data := obfuscateData{
		Cloaked: tree.Mode == Encapsulated,
		Name:    cfg.ComponentName,
	}
	if data.Name == "" {
		data.Name = config.DefaultComponentName
	}

	if data.Cloaked {
		if cfg.Entropy >= charCodeEntropy {
			data.Literal = charCodeLiteral(tree.shadowContent())
		} else {
			data.Literal = jsQuote(renderPlain(tree.shadowContent()))
		}
	}

	switch cfg.OutputDialect {
	case dialect.Component:
		root := tree.Root
		if wrapper != nil {
			wrapper.Children = []*Node{root}
			root = wrapper
		}
		data.Body = renderJSX(root, 2)
	default:
		if wrapper != nil {
			data.WrapOpen = openTag(wrapper)
			data.WrapClose = "</" + wrapper.Tag + ">"
		}
		if data.Cloaked {
			data.HostID = names.hostID()
			data.HostVar = names.varName()
		} else {
			data.Body = renderPlain(tree.Root)
		}
	}

	raw := dialect.Render(cfg.OutputDialect, "obfuscate", data)
	return Output{Raw: raw, PreviewHTML: Highlight(raw)}
}

// wrapperNode is the optional outer container; an empty value means none
func wrapperNode(cfg config.ObfuscationConfig) *Node {
	switch cfg.WrapperMode {
	case config.WrapperTailwind:
		if classes := NormalizeClasses(cfg.WrapperValue); classes != "" {
			return &Node{Tag: "div", Class: classes}
		}
	case config.WrapperCSS:
		if css := NormalizeCSS(cfg.WrapperValue); css != "" {
			return &Node{Tag: "div", CSSText: css}
		}
	}
	return nil
}

func openTag(n *Node) string {
	var sb strings.Builder
	sb.WriteString("<" + n.Tag)
	if n.Class != "" {
		sb.WriteString(` class="` + html.EscapeString(n.Class) + `"`)
	}
	if n.CSSText != "" {
		sb.WriteString(` style="` + html.EscapeString(n.CSSText) + `"`)
	}
	sb.WriteString(">")
	return sb.String()
}

func renderPlain(n *Node) string {
	var sb strings.Builder
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsText() {
			sb.WriteString(html.EscapeString(n.Text))
			return
		}
		sb.WriteString(openTag(n))
		for _, c := range n.Children {
			walk(c)
		}
		sb.WriteString("</" + n.Tag + ">")
	}
	walk(n)
	return sb.String()
}

// charCodeLiteral builds the shadow markup as a JS expression. Tags and
// styles stay quoted literals; each text node becomes a fromCharCode call.
func charCodeLiteral(n *Node) string {
	var parts []string
	var markup strings.Builder
	flush := func() {
		if markup.Len() > 0 {
			parts = append(parts, jsQuote(markup.String()))
			markup.Reset()
		}
	}

	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsText() {
			if n.Text != "" {
				flush()
				parts = append(parts, fromCharCode(html.EscapeString(n.Text)))
			}
			return
		}
		markup.WriteString(openTag(n))
		for _, c := range n.Children {
			walk(c)
		}
		markup.WriteString("</" + n.Tag + ">")
	}
	walk(n)
	flush()

	if len(parts) == 0 {
		return "''"
	}
	return strings.Join(parts, "+")
}

// renderJSX writes one element per line. Shadow hosts become a ref'd empty
// div; the template attaches the shadow root in an effect.
func renderJSX(n *Node, depth int) string {
	var sb strings.Builder
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		indent := strings.Repeat("  ", depth)
		if n.IsText() {
			sb.WriteString(indent + "{" + jsQuote(n.Text) + "}\n")
			return
		}

		open := jsxOpenTag(n)
		switch {
		case n.isolated != nil:
			sb.WriteString(indent + strings.TrimSuffix(open, ">") + " ref={hostRef} />\n")
		case len(n.Children) == 1 && n.Children[0].IsText():
			sb.WriteString(indent + open + "{" + jsQuote(n.Children[0].Text) + "}</" + n.Tag + ">\n")
		case len(n.Children) == 0:
			sb.WriteString(indent + strings.TrimSuffix(open, ">") + " />\n")
		default:
			sb.WriteString(indent + open + "\n")
			for _, c := range n.Children {
				walk(c, depth+1)
			}
			sb.WriteString(indent + "</" + n.Tag + ">\n")
		}
	}
	walk(n, depth)
	return strings.TrimSuffix(sb.String(), "\n")
}

func jsxOpenTag(n *Node) string {
	var sb strings.Builder
	sb.WriteString("<" + n.Tag)
	if n.Class != "" {
		sb.WriteString(` className="` + html.EscapeString(n.Class) + `"`)
	}
	if n.CSSText != "" {
		sb.WriteString(" style=" + JSXStyle(ParseDeclarations(n.CSSText)))
	}
	sb.WriteString(">")
	return sb.String()
}
