package ingest

// streaming.go cleans a record stream before it reaches encoding/csv:
//
//   - a leading UTF-8 BOM (Excel exports) is dropped
//   - invalid UTF-8 bytes are replaced with '?' and counted
//   - reading past the byte limit fails with types.ErrRecordFileTooLarge

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/solatis/logspec/internal/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// limitReader fails once more than limit bytes have been read.
type limitReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return n, fmt.Errorf("%w: more than %d bytes", types.ErrRecordFileTooLarge, l.limit)
	}
	return n, err
}

// sanitizer decodes runes from br and re-encodes them into the caller's buffer,
// replacing each invalid byte with '?'.
type sanitizer struct {
	br       *bufio.Reader
	replaced int
}

// newSanitizer skips a leading BOM and returns a sanitizing reader over r.
func newSanitizer(r io.Reader) (*sanitizer, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	if bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}
	return &sanitizer{br: br}, nil
}

// Read implements io.Reader.
func (s *sanitizer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		r, size, err := s.br.ReadRune()
		if err != nil {
			if n > 0 && err == io.EOF {
				return n, nil
			}
			return n, err
		}

		// A literal U+FFFD in the input decodes with size 3 and is kept
		if r == utf8.RuneError && size == 1 {
			p[n] = '?'
			n++
			s.replaced++
			continue
		}

		if utf8.RuneLen(r) > len(p)-n {
			if err := s.br.UnreadRune(); err != nil {
				return n, err
			}
			if n == 0 {
				return 0, io.ErrShortBuffer
			}
			break
		}
		n += utf8.EncodeRune(p[n:], r)
	}
	return n, nil
}

// Replaced returns how many invalid bytes were rewritten so far.
func (s *sanitizer) Replaced() int {
	return s.replaced
}
