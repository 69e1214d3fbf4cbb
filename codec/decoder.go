package codec

import (
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns a stream of payload chunks into text. Incomplete trailing
// sequences are held back until the next Decode or Flush.
type Decoder interface {
	Decode(p []byte) string
	// Flush returns whatever is held back, replacing incomplete
	// sequences, and resets the decoder.
	Flush() string
}

// NewDecoder returns a streaming decoder for enc, or nil for Raw.
// Unknown encodings decode as UTF-8.
func NewDecoder(enc Encoding) Decoder {
	switch enc {
	case Raw:
		return nil
	case Latin1:
		return &transformDecoder{t: charmap.ISO8859_1.NewDecoder()}
	case ASCII:
		return &asciiDecoder{}
	case Hex:
		return hexDecoder{}
	case Base64:
		return &base64Decoder{enc: base64.StdEncoding}
	case Base64URL:
		return &base64Decoder{enc: base64.RawURLEncoding}
	case UTF16LE:
		return &transformDecoder{t: utf16le.NewDecoder()}
	default:
		return &transformDecoder{t: unicode.UTF8.NewDecoder()}
	}
}

type transformDecoder struct {
	t       transform.Transformer
	pending []byte
	buf     []byte
}

func (d *transformDecoder) Decode(p []byte) string {
	src := p
	if len(d.pending) > 0 {
		src = append(d.pending, p...)
		d.pending = nil
	}
	return d.run(src, false)
}

func (d *transformDecoder) Flush() string {
	src := d.pending
	d.pending = nil
	s := d.run(src, true)
	d.t.Reset()
	return s
}

func (d *transformDecoder) run(src []byte, atEOF bool) string {
	if want := 3*len(src) + 8; cap(d.buf) < want {
		d.buf = make([]byte, want)
	}
	var out []byte
	for {
		dst := d.buf[:cap(d.buf)]
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch err {
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				d.buf = make([]byte, 2*cap(d.buf))
			}
			continue
		case transform.ErrShortSrc:
			d.pending = append([]byte(nil), src...)
		}
		return string(out)
	}
}

type asciiDecoder struct{}

func (asciiDecoder) Decode(p []byte) string {
	b := make([]byte, len(p))
	for i, c := range p {
		b[i] = c & 0x7f
	}
	return string(b)
}

func (asciiDecoder) Flush() string { return "" }

type hexDecoder struct{}

func (hexDecoder) Decode(p []byte) string { return hex.EncodeToString(p) }
func (hexDecoder) Flush() string          { return "" }

// base64Decoder emits whole 3-byte groups and carries the remainder.
type base64Decoder struct {
	enc     *base64.Encoding
	pending []byte
}

func (d *base64Decoder) Decode(p []byte) string {
	src := append(d.pending, p...)
	n := len(src) / 3 * 3
	s := d.enc.EncodeToString(src[:n])
	d.pending = append([]byte(nil), src[n:]...)
	return s
}

func (d *base64Decoder) Flush() string {
	s := d.enc.EncodeToString(d.pending)
	d.pending = nil
	return s
}
