// Package inject embeds generated widget code into an HTML page stream.
package inject

import (
	"bytes"
	"io"
)

var (
	// scanBufferSize is how much is pulled from the source per fill
	scanBufferSize = 4096
	// stop looking for the anchor after 64KB; pages whose anchor is that
	// deep are passed through untouched
	defaultMaxScanBytes = int64(64 * 1024)
)

// DefaultAnchor is where content goes when no anchor is configured
const DefaultAnchor = "<body>"

// InjectionReader copies an HTML stream and inserts content right after
// the first occurrence of an anchor. Matching is ASCII case-insensitive,
// and an opening-tag anchor such as "<body>" also matches the tag with
// attributes, e.g. <body class="x">.
type InjectionReader struct {
	src       io.Reader
	injection []byte
	anchor    []byte
	tagOpen   bool

	pending []byte // ready to hand out
	scan    []byte // read but not yet cleared for output
	err     error  // sticky source error, returned once scan is drained

	done         bool
	injected     bool
	scanned      int64
	maxScanBytes int64
}

// NewInjectionReader wraps r. An empty anchor means DefaultAnchor.
func NewInjectionReader(r io.Reader, anchor string, content []byte) *InjectionReader {
	if anchor == "" {
		anchor = DefaultAnchor
	}
	a := asciiLower([]byte(anchor))
	return &InjectionReader{
		src:          r,
		injection:    content,
		anchor:       a,
		tagOpen:      len(a) > 2 && a[0] == '<' && a[1] != '/' && a[len(a)-1] == '>',
		maxScanBytes: defaultMaxScanBytes,
	}
}

// Injected reports whether the anchor was found and content inserted
func (r *InjectionReader) Injected() bool {
	return r.injected
}

func (r *InjectionReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.done {
			if len(r.scan) > 0 {
				r.pending, r.scan = r.scan, nil
				continue
			}
			if r.err != nil {
				return 0, r.err
			}
			return r.src.Read(p)
		}
		if r.err != nil {
			// source ended before the anchor showed up
			r.done = true
			continue
		}
		r.fill()
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *InjectionReader) fill() {
	buf := make([]byte, scanBufferSize)
	n, err := r.src.Read(buf)
	r.scan = append(r.scan, buf[:n]...)
	r.scanned += int64(n)
	if err != nil {
		r.err = err
	}

	end, partial := r.findInsertion()
	if end >= 0 {
		out := make([]byte, 0, len(r.scan)+len(r.injection))
		out = append(out, r.scan[:end]...)
		out = append(out, r.injection...)
		out = append(out, r.scan[end:]...)
		r.pending, r.scan = out, nil
		r.done = true
		r.injected = true
		return
	}

	if r.scanned >= r.maxScanBytes {
		r.done = true
		return
	}

	// hand out everything that cannot be the start of a match
	keepFrom := len(r.scan) - (len(r.anchor) - 1)
	if partial >= 0 && partial < keepFrom {
		keepFrom = partial
	}
	if keepFrom > 0 {
		r.pending = r.scan[:keepFrom]
		r.scan = append([]byte(nil), r.scan[keepFrom:]...)
	}
}

// findInsertion returns the offset right after the matched anchor, or -1.
// partial is the start of an opening tag whose '>' has not been read yet.
func (r *InjectionReader) findInsertion() (end, partial int) {
	lower := asciiLower(r.scan)
	if !r.tagOpen {
		if idx := bytes.Index(lower, r.anchor); idx >= 0 {
			return idx + len(r.anchor), -1
		}
		return -1, -1
	}

	prefix := r.anchor[:len(r.anchor)-1]
	from := 0
	for {
		idx := bytes.Index(lower[from:], prefix)
		if idx < 0 {
			return -1, -1
		}
		idx += from
		after := idx + len(prefix)
		if after == len(lower) {
			return -1, idx
		}
		switch lower[after] {
		case '>':
			return after + 1, -1
		case ' ', '\t', '\n', '\r', '\f', '/':
			if gt := tagEnd(lower, after); gt >= 0 {
				return gt + 1, -1
			}
			return -1, idx
		}
		from = idx + 1
	}
}

// tagEnd finds the '>' closing a tag, skipping quoted attribute values
func tagEnd(b []byte, from int) int {
	var quote byte
	for i := from; i < len(b); i++ {
		c := b[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i
		}
	}
	return -1
}

func asciiLower(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// Inject is the buffered form of InjectionReader
func Inject(page []byte, anchor string, content []byte) ([]byte, bool, error) {
	r := NewInjectionReader(bytes.NewReader(page), anchor, content)
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, false, err
	}
	return out, r.Injected(), nil
}
