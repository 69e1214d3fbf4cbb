package tcp

import (
	"net/netip"

	"github.com/wippyai/tcpnet/address"
)

// Data is one delivery of received payload. It carries bytes when the
// socket has no encoding set and text otherwise, never both.
type Data struct {
	bytes  []byte
	text   string
	isText bool
}

func rawData(p []byte) Data  { return Data{bytes: p} }
func textData(s string) Data { return Data{text: s, isText: true} }
func (d Data) IsText() bool  { return d.isText }
func (d Data) Bytes() []byte { return d.bytes }
func (d Data) Text() string  { return d.text }

// Len returns the payload size in bytes or, for text, in UTF-8 bytes.
func (d Data) Len() int {
	if d.isText {
		return len(d.text)
	}
	return len(d.bytes)
}

// String returns the text, or the bytes converted to a string.
func (d Data) String() string {
	if d.isText {
		return d.text
	}
	return string(d.bytes)
}

// Lookup reports a host name resolution made by Connect.
type Lookup struct {
	Host    string
	Address netip.Addr
	Family  address.Family
}

// DropReason says why a server refused an accepted connection.
type DropReason string

const (
	DropMaxConnections DropReason = "max-connections"
	DropBlocked        DropReason = "blocked"
)

// DropInfo describes a connection closed by a server right after accept.
type DropInfo struct {
	Local  address.SocketAddress
	Remote address.SocketAddress
	Reason DropReason
}
