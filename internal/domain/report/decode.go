package report

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText turns raw file bytes into text. A UTF-8 or UTF-16 byte-order
// mark selects the encoding; otherwise the bytes are read as UTF-8. Invalid
// sequences become U+FFFD instead of failing the read.
func decodeText(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// lossy reports whether any value carries a replacement character left by
// decoding.
func lossy(values ...*string) bool {
	for _, v := range values {
		if v != nil && strings.ContainsRune(*v, utf8.RuneError) {
			return true
		}
	}
	return false
}
