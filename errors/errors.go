package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates which operation was running when the error occurred
type Phase string

const (
	PhaseConstruct Phase = "construct" // value and rule validation
	PhaseConnect   Phase = "connect"   // outbound connection setup
	PhaseLookup    Phase = "lookup"    // host name resolution
	PhaseListen    Phase = "listen"    // bind and listen
	PhaseAccept    Phase = "accept"    // inbound connection accept
	PhaseRead      Phase = "read"      // receive path
	PhaseWrite     Phase = "write"     // send path
	PhaseClose     Phase = "close"     // teardown
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidAddress      Kind = "invalid_address"
	KindInvalidRange        Kind = "invalid_range"
	KindInvalidPrefixLength Kind = "invalid_prefix_length"
	KindAddressInUse        Kind = "address_in_use"
	KindNotConnected        Kind = "not_connected"
	KindConnectionRefused   Kind = "connection_refused"
	KindTimeout             Kind = "timeout"
	KindTransport           Kind = "transport"
	KindServerNotRunning    Kind = "server_not_running"
	KindInvalidEncoding     Kind = "invalid_encoding"
)

// Sentinels for errors.Is matching by kind, in any phase.
var (
	ErrInvalidAddress      = &Error{Kind: KindInvalidAddress}
	ErrInvalidRange        = &Error{Kind: KindInvalidRange}
	ErrInvalidPrefixLength = &Error{Kind: KindInvalidPrefixLength}
	ErrAddressInUse        = &Error{Kind: KindAddressInUse}
	ErrNotConnected        = &Error{Kind: KindNotConnected}
	ErrConnectionRefused   = &Error{Kind: KindConnectionRefused}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrTransport           = &Error{Kind: KindTransport}
	ErrServerNotRunning    = &Error{Kind: KindServerNotRunning}
	ErrInvalidEncoding     = &Error{Kind: KindInvalidEncoding}
)

// Error is the structured error type used throughout tcpnet
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Op      string
	Address string
	Detail  string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}

	if e.Address != "" {
		b.WriteString(" at ")
		b.WriteString(e.Address)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Kinds must be equal; the
// phase is compared only when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Address sets the address involved
func (b *Builder) Address(addr string) *Builder {
	b.err.Address = addr
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidAddress creates an error for an address that does not parse under family
func InvalidAddress(phase Phase, addr, family string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindInvalidAddress,
		Address: addr,
		Detail:  fmt.Sprintf("not a valid %s address", family),
		Value:   addr,
	}
}

// InvalidPort creates an error for a port outside [0, 65535]
func InvalidPort(phase Phase, port int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidAddress,
		Detail: fmt.Sprintf("port %d out of range [0, 65535]", port),
		Value:  port,
	}
}

// InvalidRange creates an error for a range whose start is above its end
func InvalidRange(start, end string) *Error {
	return &Error{
		Phase:  PhaseConstruct,
		Kind:   KindInvalidRange,
		Detail: fmt.Sprintf("range start %s is greater than end %s", start, end),
	}
}

// InvalidPrefixLength creates an error for a prefix outside the family's bounds
func InvalidPrefixLength(prefix, maxBits int) *Error {
	return &Error{
		Phase:  PhaseConstruct,
		Kind:   KindInvalidPrefixLength,
		Detail: fmt.Sprintf("prefix length %d out of range [0, %d]", prefix, maxBits),
		Value:  prefix,
	}
}

// NotConnected creates an error for an operation that requires a connected socket
func NotConnected(op string) *Error {
	return &Error{
		Phase:  PhaseWrite,
		Kind:   KindNotConnected,
		Op:     op,
		Detail: "socket is not connected",
	}
}

// ServerNotRunning creates the error passed to Close callbacks of idle servers
func ServerNotRunning() *Error {
	return &Error{
		Phase:  PhaseClose,
		Kind:   KindServerNotRunning,
		Detail: "server is not running",
	}
}

// Transport wraps an OS-level I/O failure
func Transport(phase Phase, op string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindTransport,
		Op:    op,
		Cause: cause,
	}
}

// InvalidEncoding creates an error for an unknown encoding name or a payload
// that does not decode under its encoding
func InvalidEncoding(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseConstruct,
		Kind:   KindInvalidEncoding,
		Detail: fmt.Sprintf("encoding %q", name),
		Value:  name,
		Cause:  cause,
	}
}
