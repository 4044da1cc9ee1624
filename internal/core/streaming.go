package core

// streaming.go normalizes the byte stream of an uploaded text file before
// it reaches the CSV parser:
//
//   - A leading UTF-8 or UTF-16 BOM selects the encoding and is removed
//   - Files that are not valid UTF-8 are decoded as Windows-1252, which is
//     what spreadsheet programs on Spanish-locale desktops emit
//   - Invalid sequences become U+FFFD instead of failing the import
//   - Bytes are counted so oversized uploads stop early

import (
	"bufio"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffSize is how much of the stream is inspected to choose an encoding.
const sniffSize = 4096

// DetectEncoding picks the decoder for a text stream from its first bytes.
// Only the UTF-8 versus Windows-1252 decision is made here; BOMs are
// handled by the returned decoder itself.
func DetectEncoding(head []byte) encoding.Encoding {
	if len(head) >= 2 && (head[0] == 0xFF && head[1] == 0xFE || head[0] == 0xFE && head[1] == 0xFF) {
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	}
	if utf8.Valid(trimPartialRune(head)) {
		return unicode.UTF8
	}
	return charmap.Windows1252
}

// trimPartialRune drops an incomplete multi-byte sequence cut off at the
// end of a sniff buffer.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < 0x80 {
			return b
		}
		if c >= 0xC0 {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}

// NewTextReader returns a reader that yields UTF-8 text without a BOM.
func NewTextReader(r io.Reader) io.Reader {
	br := bufio.NewReaderSize(r, sniffSize)
	head, _ := br.Peek(sniffSize)

	enc := DetectEncoding(head)
	return transform.NewReader(br, unicode.BOMOverride(enc.NewDecoder()))
}

// CountingReader tracks bytes read and fails once Limit is exceeded.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Limit     int64 // 0 disables the limit
}

// NewCountingReader creates a counting reader with an optional size limit.
func NewCountingReader(r io.Reader, limit int64) *CountingReader {
	return &CountingReader{reader: r, Limit: limit}
}

func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.Limit > 0 && r.BytesRead > r.Limit {
		return n, ErrFileTooLarge
	}
	return n, err
}

// WrapForStreaming applies the size limit to the raw bytes and then decodes
// them to UTF-8.
func WrapForStreaming(r io.Reader, limit int64) io.Reader {
	return NewTextReader(NewCountingReader(r, limit))
}
