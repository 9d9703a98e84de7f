package obfuscator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type CloakMode int

const (
	// Exposed places the chunk spans directly in the host document
	Exposed CloakMode = iota
	// Encapsulated moves them into a closed shadow root
	Encapsulated
)

func (m CloakMode) String() string {
	if m == Encapsulated {
		return "encapsulated"
	}
	return "exposed"
}

const (
	flexContainerCSS = "display:flex;white-space:pre"
	decoyCSS         = "display:none"
	decoyAlphabet    = "abcdefghijklmnopqrstuvwxyz0123456789@._-"
)

// Node is an element or, when Tag is empty, a text leaf. A node with an
// isolated root is a shadow host: its shadow content is reachable only by
// the renderer and the human view, never through ChildNodes.
type Node struct {
	Tag      string
	Class    string
	CSSText  string
	Text     string
	Decoy    bool
	Children []*Node

	isolated *Node
}

func (n *Node) IsText() bool {
	return n.Tag == ""
}

// ChildNodes is the traversal a scraper sees
func (n *Node) ChildNodes() []*Node {
	return n.Children
}

// Isolated reports whether n hosts a closed shadow root
func (n *Node) Isolated() bool {
	return n.isolated != nil
}

// RenderTree is the cloaked chunk structure handed to the emitter
type RenderTree struct {
	Root *Node
	Mode CloakMode
}

type CloakOptions struct {
	Decoys int
	Seed   int64
}

// Cloak builds a flex container holding one span per chunk, optionally
// interleaved with hidden decoy spans, and for Encapsulated hides the
// container behind a shadow host.
func Cloak(chunks []Chunk, mode CloakMode, opts CloakOptions) *RenderTree {
	container := &Node{Tag: "div", CSSText: flexContainerCSS}

	var decoys []*Node
	if opts.Decoys > 0 && len(chunks) > 0 {
		decoys = makeDecoys(opts.Decoys, Join(chunks), opts.Seed)
	}

	for i, c := range chunks {
		container.Children = append(container.Children, &Node{
			Tag:      "span",
			CSSText:  "order:" + strconv.Itoa(c.Order),
			Children: []*Node{{Text: c.Content}},
		})
		for j := i; j < len(decoys); j += len(chunks) {
			container.Children = append(container.Children, decoys[j])
		}
	}

	if mode == Encapsulated {
		return &RenderTree{Root: &Node{Tag: "div", isolated: container}, Mode: mode}
	}
	return &RenderTree{Root: container, Mode: mode}
}

func makeDecoys(count int, payload string, seed int64) []*Node {
	rng := seededRand(seed, payload, count)
	decoys := make([]*Node, count)
	for i := range decoys {
		junk := make([]byte, 1+rng.IntN(3))
		for k := range junk {
			junk[k] = decoyAlphabet[rng.IntN(len(decoyAlphabet))]
		}
		decoys[i] = &Node{
			Tag:      "span",
			CSSText:  decoyCSS,
			Decoy:    true,
			Children: []*Node{{Text: string(junk)}},
		}
	}
	return decoys
}

// HostText is what a scraper reading the host document's text content
// gets: every text node in source order, decoys included, shadow content
// excluded.
func (t *RenderTree) HostText() string {
	var sb strings.Builder
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsText() {
			sb.WriteString(n.Text)
			return
		}
		for _, c := range n.ChildNodes() {
			walk(c)
		}
	}
	walk(t.Root)
	return sb.String()
}

// VisibleText is what a rendering browser shows: shadow content replaces
// the host's light DOM, flex children follow their order property and
// decoys are not displayed.
func (t *RenderTree) VisibleText() string {
	var sb strings.Builder
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Decoy {
			return
		}
		if n.IsText() {
			sb.WriteString(n.Text)
			return
		}
		if n.isolated != nil {
			walk(n.isolated)
			return
		}
		children := n.Children
		if isFlex(n.CSSText) {
			children = make([]*Node, len(n.Children))
			copy(children, n.Children)
			sort.SliceStable(children, func(i, j int) bool {
				return cssOrder(children[i].CSSText) < cssOrder(children[j].CSSText)
			})
		}
		for _, c := range children {
			walk(c)
		}
	}
	walk(t.Root)
	return sb.String()
}

// shadowContent is the renderer's view into an isolated root
func (t *RenderTree) shadowContent() *Node {
	return t.Root.isolated
}

func isFlex(css string) bool {
	for _, d := range ParseDeclarations(css) {
		if d.Property == "display" && (d.Value == "flex" || d.Value == "inline-flex") {
			return true
		}
	}
	return false
}

func cssOrder(css string) int {
	for _, d := range ParseDeclarations(css) {
		if d.Property == "order" {
			if n, err := strconv.Atoi(d.Value); err == nil {
				return n
			}
		}
	}
	return 0
}

const (
	ScraperEmpty     = "[EMPTY STRING]"
	StatusCloaked    = "Shadow Cloaked"
	StatusFragmented = "Fragmented"
	StatusExposed    = "Exposed"
)

// Simulation contrasts what a naive scraper and a human see
type Simulation struct {
	ScraperView string `json:"scraperView"`
	HumanView   string `json:"humanView"`
	Status      string `json:"status"`
}

// Simulate runs both readers over the tree and classifies the result
func Simulate(tree *RenderTree, payload string) Simulation {
	sim := classify(tree.HostText(), payload, tree.Mode == Encapsulated)
	sim.HumanView = tree.VisibleText()
	return sim
}

func classify(scraped, payload string, cloaked bool) Simulation {
	sim := Simulation{ScraperView: scraped}
	switch {
	case scraped == "" && cloaked:
		sim.ScraperView = ScraperEmpty
		sim.Status = StatusCloaked
	case scraped == "":
		sim.ScraperView = ScraperEmpty
		sim.Status = StatusFragmented
	case payload != "" && strings.Contains(scraped, payload):
		sim.Status = StatusExposed
	default:
		sim.Status = StatusFragmented
	}
	return sim
}

func (s Simulation) String() string {
	return fmt.Sprintf("%s: %q (human: %q)", s.Status, s.ScraperView, s.HumanView)
}
