// Package captcha models the BiDiCaptcha challenge: secret generation, the
// speed bump validation protocol, and emission of the client widget.
package captcha

import (
	"crypto/rand"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/defenra/bidi/config"
)

// Charset is the alphabet secrets are drawn from
const Charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const noiseGlyphs = "~^*:;.,'`|/\\"

// Secret is one challenge code. It lives only for one attempt.
type Secret struct {
	Code     string
	IssuedAt time.Time
}

// Expired reports whether the secret is older than ttl. A zero ttl never
// expires.
func (s Secret) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 || s.IssuedAt.IsZero() {
		return false
	}
	return now.Sub(s.IssuedAt) > ttl
}

// Generator draws codes and remembers the last one so consecutive codes
// always differ.
type Generator struct {
	length int
	random io.Reader
	clock  Clock
	last   string
}

// NewGenerator returns a generator backed by crypto/rand
func NewGenerator(length int) *Generator {
	return NewGeneratorWithSource(length, rand.Reader, SystemClock{})
}

// NewGeneratorWithSource lets tests supply the entropy source and clock
func NewGeneratorWithSource(length int, random io.Reader, clock Clock) *Generator {
	if length < config.MinCodeLength || length > config.MaxCodeLength {
		length = config.DefaultCodeLength
	}
	if random == nil {
		random = rand.Reader
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Generator{length: length, random: random, clock: clock}
}

// Generate returns a fresh secret different from the previous one
func (g *Generator) Generate() Secret {
	code := g.draw()
	if code == g.last {
		// bump the final character instead of redrawing, so a degenerate
		// source cannot stall generation
		i := strings.IndexByte(Charset, code[len(code)-1])
		code = code[:len(code)-1] + string(Charset[(i+1)%len(Charset)])
	}
	g.last = code
	return Secret{Code: code, IssuedAt: g.clock.Now()}
}

func (g *Generator) draw() string {
	size := big.NewInt(int64(len(Charset)))
	result := make([]byte, g.length)
	for i := range result {
		num, err := rand.Int(g.random, size)
		if err != nil {
			// exhausted or broken reader, fall back to the system source
			g.random = rand.Reader
			num, _ = rand.Int(g.random, size)
		}
		result[i] = Charset[num.Int64()]
	}
	return string(result)
}

// RenderOCR is the simulated noisy view of a secret. Noise 0 yields the
// clean code; higher values interleave that many noise glyphs after each
// character.
func RenderOCR(secret Secret, noise int, random io.Reader) string {
	if noise <= 0 {
		return secret.Code
	}
	if random == nil {
		random = rand.Reader
	}

	size := big.NewInt(int64(len(noiseGlyphs)))
	var sb strings.Builder
	for _, c := range secret.Code {
		sb.WriteRune(c)
		for i := 0; i < noise; i++ {
			num, err := rand.Int(random, size)
			if err != nil {
				num = big.NewInt(int64(i % len(noiseGlyphs)))
			}
			sb.WriteByte(noiseGlyphs[num.Int64()])
		}
	}
	return sb.String()
}

// StripNoise recovers the code from an OCR view
func StripNoise(view string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(Charset, r) {
			return r
		}
		return -1
	}, view)
}
