package sheet

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

// Exports saved from Excel on Windows often start with a UTF-8 byte order
// mark and may carry stray Latin-1 bytes. These readers clean both up while
// the CSV decoder pulls from them.

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM drops a leading UTF-8 BOM from r.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// utf8Sanitizer replaces each invalid UTF-8 byte with '?'. A multi-byte
// sequence split across reads is held back until the next call.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	off := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}
	return s.clean(p[:n], err == io.EOF), err
}

// clean rewrites buf in place and returns the number of bytes to hand out.
func (s *utf8Sanitizer) clean(buf []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(buf); {
		if buf[r] < utf8.RuneSelf {
			buf[w] = buf[r]
			w++
			r++
			continue
		}

		if !atEOF && !utf8.FullRune(buf[r:]) {
			s.pending = append(s.pending, buf[r:]...)
			break
		}

		ch, size := utf8.DecodeRune(buf[r:])
		if ch == utf8.RuneError && size == 1 {
			buf[w] = '?'
			w++
			r++
			continue
		}
		copy(buf[w:], buf[r:r+size])
		w += size
		r += size
	}
	return w
}
