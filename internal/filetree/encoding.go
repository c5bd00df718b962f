package filetree

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Supported encodings, in detection order
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingWindows1252 = "windows-1252"
)

// binarySniffLen is how many leading bytes are inspected for NUL bytes
const binarySniffLen = 8000

var (
	// ErrBinary is returned for content that looks like binary data
	ErrBinary = errors.New("binary content")
	// ErrUnknownEncoding is returned by Decode for unsupported encoding names
	ErrUnknownEncoding = errors.New("unknown encoding")
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding guesses the text encoding of raw bytes. Byte order marks win;
// otherwise valid UTF-8 is UTF-8 and everything else is treated as
// Windows-1252, which decodes any byte sequence.
func DetectEncoding(content []byte) string {
	switch {
	case bytes.HasPrefix(content, bomUTF8):
		return EncodingUTF8
	case bytes.HasPrefix(content, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(content, bomUTF16BE):
		return EncodingUTF16BE
	case utf8.Valid(content):
		return EncodingUTF8
	default:
		return EncodingWindows1252
	}
}

// IsBinary reports whether content contains a NUL byte near its start.
// UTF-16 content is excluded since it legitimately carries NUL bytes.
func IsBinary(content []byte) bool {
	if bytes.HasPrefix(content, bomUTF16LE) || bytes.HasPrefix(content, bomUTF16BE) {
		return false
	}
	head := content
	if len(head) > binarySniffLen {
		head = head[:binarySniffLen]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// Decode converts raw bytes in the named encoding to a UTF-8 string.
// A leading byte order mark is dropped.
func Decode(content []byte, enc string) (string, error) {
	var dec *encoding.Decoder
	switch enc {
	case EncodingUTF8, "":
		content = bytes.TrimPrefix(content, bomUTF8)
		if utf8.Valid(content) {
			return string(content), nil
		}
		// Invalid sequences become U+FFFD
		return string(bytes.ToValidUTF8(content, []byte("\uFFFD"))), nil
	case EncodingUTF16LE:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	case EncodingUTF16BE:
		dec = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	case EncodingWindows1252:
		dec = charmap.Windows1252.NewDecoder()
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownEncoding, enc)
	}

	out, err := dec.Bytes(content)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s content: %w", enc, err)
	}
	return string(out), nil
}
