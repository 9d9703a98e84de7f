// Package obfuscator turns plaintext into markup that renders correctly
// in a browser while a naive text extractor reads shuffled fragments, or
// nothing at all when the fragments are cloaked in a closed shadow root.
package obfuscator

import (
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/rivo/uniseg"
)

// Chunk is one fragment of the payload. Order is its position in the
// visible text; a slice of chunks is kept in DOM order.
type Chunk struct {
	Content string `json:"content"`
	Order   int    `json:"order"`
}

// Encode splits text into fragments whose width shrinks as entropy
// grows and lays them out in a DOM order that differs from reading order.
func Encode(text string, entropy int) []Chunk {
	return EncodeSeeded(text, entropy, 0)
}

// EncodeSeeded is Encode with a caller-chosen shuffle. Seed 0 selects the
// fixed odd-then-even layout.
func EncodeSeeded(text string, entropy int, seed int64) []Chunk {
	graphemes := splitGraphemes(text)
	if len(graphemes) == 0 {
		return nil
	}

	width := fragmentWidth(len(graphemes), entropy)
	fragments := make([]string, 0, len(graphemes)/width+1)
	for i := 0; i < len(graphemes); i += width {
		end := min(i+width, len(graphemes))
		fragments = append(fragments, strings.Join(graphemes[i:end], ""))
	}

	chunks := make([]Chunk, len(fragments))
	for pos, layout := range domOrder(len(fragments), seed) {
		chunks[pos] = Chunk{Content: fragments[layout], Order: layout}
	}
	return chunks
}

// Join reassembles chunks in layout order
func Join(chunks []Chunk) string {
	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	var sb strings.Builder
	for _, c := range sorted {
		sb.WriteString(c.Content)
	}
	return sb.String()
}

// splitGraphemes never cuts inside a user-perceived character, so emoji,
// combining marks and multi-byte runes stay intact.
func splitGraphemes(text string) []string {
	var out []string
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

// fragmentWidth is 4 graphemes at entropy 1 down to 1 at entropy 4 and
// above, capped so any text of two or more graphemes yields two chunks.
func fragmentWidth(n, entropy int) int {
	if entropy < 1 {
		entropy = 1
	}
	width := 5 - entropy
	if half := (n + 1) / 2; width > half {
		width = half
	}
	if width < 1 {
		width = 1
	}
	return width
}

// domOrder returns, for each DOM position, the layout index placed there.
// It is never the identity for k >= 2.
func domOrder(k int, seed int64) []int {
	perm := make([]int, 0, k)
	if k < 2 {
		for i := 0; i < k; i++ {
			perm = append(perm, i)
		}
		return perm
	}

	if seed == 0 {
		for i := 1; i < k; i += 2 {
			perm = append(perm, i)
		}
		for i := 0; i < k; i += 2 {
			perm = append(perm, i)
		}
		return perm
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	perm = rng.Perm(k)
	if isIdentity(perm) {
		perm = append(perm[1:], perm[0])
	}
	return perm
}

func isIdentity(perm []int) bool {
	for i, v := range perm {
		if i != v {
			return false
		}
	}
	return true
}
