package captcha

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// zeroReader always yields zero bytes, so every draw is the same code
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestGenerateAlphabetAndLength(t *testing.T) {
	g := NewGenerator(6)
	for i := 0; i < 100; i++ {
		s := g.Generate()
		require.Len(t, s.Code, 6)
		for _, c := range s.Code {
			assert.True(t, strings.ContainsRune(Charset, c), "unexpected %q", c)
		}
	}
}

func TestGenerateNeverRepeats(t *testing.T) {
	t.Run("system source", func(t *testing.T) {
		g := NewGenerator(6)
		prev := g.Generate()
		for i := 0; i < 500; i++ {
			next := g.Generate()
			assert.NotEqual(t, prev.Code, next.Code)
			prev = next
		}
	})

	t.Run("degenerate source", func(t *testing.T) {
		g := NewGeneratorWithSource(6, zeroReader{}, newFakeClock())
		first := g.Generate()
		second := g.Generate()
		third := g.Generate()
		assert.Equal(t, "AAAAAA", first.Code)
		assert.Equal(t, "AAAAAB", second.Code)
		assert.Equal(t, "AAAAAA", third.Code)
	})
}

func TestGenerateLengthBounds(t *testing.T) {
	assert.Len(t, NewGenerator(2).Generate().Code, 6)
	assert.Len(t, NewGenerator(40).Generate().Code, 6)
	assert.Len(t, NewGenerator(8).Generate().Code, 8)
}

func TestGenerateBrokenSource(t *testing.T) {
	g := NewGeneratorWithSource(6, bytes.NewReader([]byte{1, 2}), newFakeClock())
	assert.Len(t, g.Generate().Code, 6)
}

func TestSecretExpired(t *testing.T) {
	clock := newFakeClock()
	s := Secret{Code: "ABC123", IssuedAt: clock.Now()}

	assert.False(t, s.Expired(5*time.Minute, clock.Now().Add(4*time.Minute)))
	assert.True(t, s.Expired(5*time.Minute, clock.Now().Add(6*time.Minute)))
	assert.False(t, s.Expired(0, clock.Now().Add(24*time.Hour)))
}

func TestRenderOCR(t *testing.T) {
	s := Secret{Code: "K7Q2XZ"}
	assert.Equal(t, "K7Q2XZ", RenderOCR(s, 0, nil))

	noisy := RenderOCR(s, 2, nil)
	assert.Len(t, noisy, len(s.Code)*3)
	assert.NotEqual(t, s.Code, noisy)
	assert.Equal(t, s.Code, StripNoise(noisy))
}
