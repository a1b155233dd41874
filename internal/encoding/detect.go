package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset names reported by Detect and accepted by NewDecodingReader.
const (
	UTF8        = "UTF-8"
	UTF16LE     = "UTF-16LE"
	UTF16BE     = "UTF-16BE"
	Windows1256 = "windows-1256"
	Windows1252 = "windows-1252"
	ISO88596    = "ISO-8859-6"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

var decoders = map[string]encoding.Encoding{
	strings.ToLower(Windows1256): charmap.Windows1256,
	strings.ToLower(Windows1252): charmap.Windows1252,
	strings.ToLower(ISO88596):    charmap.ISO8859_6,
	"iso-8859-1":                 charmap.Windows1252,
	"cp1256":                     charmap.Windows1256,
}

// Detect returns a UTF-8 reader over r together with the charset it chose.
//
// Detection order:
//  1. BOM (UTF-8 BOM is stripped; UTF-16 LE/BE is decoded)
//  2. Valid UTF-8 is returned as-is
//  3. Heuristic detection via chardet (Arabic and Western code pages)
//  4. Fallback to Windows-1256, the usual legacy code page of Persian spreadsheets
func Detect(r io.Reader) (io.Reader, string, error) {
	br := bufio.NewReader(r)

	buf, err := br.Peek(4096)
	if err != nil && err != io.EOF {
		return nil, "", fmt.Errorf("peek: %w", err)
	}

	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return br, UTF8, nil
	case bytes.HasPrefix(buf, bomUTF16LE):
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(br, decoder), UTF16LE, nil
	case bytes.HasPrefix(buf, bomUTF16BE):
		decoder := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(br, decoder), UTF16BE, nil
	}

	if utf8.Valid(buf) {
		return br, UTF8, nil
	}

	result, detectErr := chardet.NewTextDetector().DetectBest(buf)
	if detectErr == nil {
		switch result.Charset {
		case "UTF-8":
			return br, UTF8, nil
		case "windows-1256":
			return transform.NewReader(br, charmap.Windows1256.NewDecoder()), Windows1256, nil
		case "ISO-8859-6":
			return transform.NewReader(br, charmap.ISO8859_6.NewDecoder()), ISO88596, nil
		case "ISO-8859-1", "windows-1252":
			return transform.NewReader(br, charmap.Windows1252.NewDecoder()), Windows1252, nil
		}
	}

	return transform.NewReader(br, charmap.Windows1256.NewDecoder()), Windows1256, nil
}

// NewDecodingReader decodes r from the named charset, skipping detection.
func NewDecodingReader(r io.Reader, charset string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "utf-8" || name == "utf8" {
		return r, nil
	}

	enc, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}

	return transform.NewReader(r, enc.NewDecoder()), nil
}
