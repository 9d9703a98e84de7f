package obfuscator

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ScrapeHTML extracts text from markup the way a non-rendering scraper
// does: text nodes in document order, ignoring layout and display rules,
// without running scripts or entering shadow roots.
func ScrapeHTML(raw string) (string, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(raw), context)
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Template, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.TrimSpace(sb.String()), nil
}

// SimulateHTML classifies raw plain-dialect markup against the payload.
// Markup that attaches a closed shadow root and leaves no host text counts
// as cloaked.
func SimulateHTML(raw, payload string) (Simulation, error) {
	scraped, err := ScrapeHTML(raw)
	if err != nil {
		return Simulation{}, err
	}
	return classify(scraped, payload, strings.Contains(raw, "attachShadow({mode: 'closed'})")), nil
}
