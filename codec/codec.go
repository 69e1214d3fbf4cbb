// Package codec converts between socket payload bytes and text.
//
// Sockets deliver raw bytes unless an Encoding is set. Text encodings are
// decoded with a streaming Decoder so multi-byte sequences split across
// reads are carried over instead of being replaced.
package codec

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	tcperrors "github.com/wippyai/tcpnet/errors"
)

// Encoding names a payload text encoding. Raw means no text conversion.
type Encoding string

const (
	Raw       Encoding = ""
	UTF8      Encoding = "utf8"
	ASCII     Encoding = "ascii"
	Latin1    Encoding = "latin1"
	Hex       Encoding = "hex"
	Base64    Encoding = "base64"
	Base64URL Encoding = "base64url"
	UTF16LE   Encoding = "utf16le"
)

var aliases = map[string]Encoding{
	"":          Raw,
	"buffer":    Raw,
	"utf8":      UTF8,
	"utf-8":     UTF8,
	"ascii":     ASCII,
	"latin1":    Latin1,
	"binary":    Latin1,
	"hex":       Hex,
	"base64":    Base64,
	"base64url": Base64URL,
	"utf16le":   UTF16LE,
	"utf-16le":  UTF16LE,
	"ucs2":      UTF16LE,
	"ucs-2":     UTF16LE,
}

// Lookup resolves an encoding name, case-insensitively and with the usual
// aliases (binary, ucs2, utf-8).
func Lookup(name string) (Encoding, error) {
	if e, ok := aliases[strings.ToLower(name)]; ok {
		return e, nil
	}
	return Raw, tcperrors.InvalidEncoding(name, nil)
}

func (e Encoding) String() string {
	if e == Raw {
		return "raw"
	}
	return string(e)
}

// IsText reports whether payloads are delivered as strings.
func (e Encoding) IsText() bool {
	return e != Raw
}

// Valid reports whether e is one of the known encodings.
func (e Encoding) Valid() bool {
	_, ok := aliases[string(e)]
	return ok
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Encode converts s into payload bytes. Raw and UTF8 copy s unchanged. Hex
// and base64 input must be well formed.
func Encode(s string, enc Encoding) ([]byte, error) {
	switch enc {
	case Raw, UTF8:
		return []byte(s), nil
	case ASCII:
		b, err := latin1Bytes(s)
		if err != nil {
			return nil, err
		}
		for i := range b {
			b[i] &= 0x7f
		}
		return b, nil
	case Latin1:
		return latin1Bytes(s)
	case Hex:
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, tcperrors.InvalidEncoding(string(enc), err)
		}
		return b, nil
	case Base64:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			b, err = base64.RawStdEncoding.DecodeString(s)
		}
		if err != nil {
			return nil, tcperrors.InvalidEncoding(string(enc), err)
		}
		return b, nil
	case Base64URL:
		b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, tcperrors.InvalidEncoding(string(enc), err)
		}
		return b, nil
	case UTF16LE:
		b, err := utf16le.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, tcperrors.InvalidEncoding(string(enc), err)
		}
		return b, nil
	}
	return nil, tcperrors.InvalidEncoding(string(enc), nil)
}

// Characters outside Latin-1 are replaced with the charmap's substitute byte.
func latin1Bytes(s string) ([]byte, error) {
	b, err := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return nil, tcperrors.InvalidEncoding(string(Latin1), err)
	}
	return b, nil
}

// DecodeString decodes a complete payload in one call.
func DecodeString(p []byte, enc Encoding) string {
	d := NewDecoder(enc)
	if d == nil {
		return string(p)
	}
	return d.Decode(p) + d.Flush()
}
