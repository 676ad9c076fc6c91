package parser

// reader.go cleans up text files before CSV decoding:
//
//   - bomSkipper drops a leading UTF-8 byte order mark (Excel on Windows adds one)
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' without buffering the file
//
// Use cleanText to apply both in the right order.

import (
	"bufio"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkipper removes a UTF-8 BOM from the start of the stream.
type bomSkipper struct {
	r       *bufio.Reader
	checked bool
}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{r: bufio.NewReader(r)}
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, err := b.r.Peek(len(utf8BOM)); err == nil &&
			head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
			_, _ = b.r.Discard(len(utf8BOM))
		}
	}
	return b.r.Read(p)
}

// utf8Sanitizer rewrites invalid UTF-8 in place. A multi-byte rune split
// across two reads is carried over to the next call.
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
	// Leave room so a carried-over partial rune plus fresh bytes fit.
	if len(p) < utf8.UTFMax {
		buf := make([]byte, utf8.UTFMax)
		n, err := s.Read(buf)
		copied := copy(p, buf[:n])
		s.pending = append(buf[copied:n:n], s.pending...)
		return copied, err
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize compacts data in place and returns the number of bytes to deliver.
// Without atEOF a trailing incomplete rune is held back in pending.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		if data[read] < utf8.RuneSelf {
			data[write] = data[read]
			write++
			read++
			continue
		}

		rest := data[read:]
		if !atEOF && !utf8.FullRune(rest) {
			s.pending = append(s.pending, rest...)
			return write
		}

		r, size := utf8.DecodeRune(rest)
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], rest[:size])
		write += size
		read += size
	}
	return write
}

// cleanText strips a BOM and sanitizes UTF-8.
func cleanText(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMSkipper(r))
}
