package tcp

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"

	tcperrors "github.com/wippyai/tcpnet/errors"
)

func TestMapNetError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind tcperrors.Kind
	}{
		{
			name: "connection refused",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
			kind: tcperrors.KindConnectionRefused,
		},
		{
			name: "address in use",
			err:  &net.OpError{Op: "listen", Net: "tcp", Err: os.NewSyscallError("bind", syscall.EADDRINUSE)},
			kind: tcperrors.KindAddressInUse,
		},
		{
			name: "address not available",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("bind", syscall.EADDRNOTAVAIL)},
			kind: tcperrors.KindInvalidAddress,
		},
		{
			name: "not connected",
			err:  syscall.ENOTCONN,
			kind: tcperrors.KindNotConnected,
		},
		{
			name: "errno timeout",
			err:  syscall.ETIMEDOUT,
			kind: tcperrors.KindTimeout,
		},
		{
			name: "context deadline",
			err:  context.DeadlineExceeded,
			kind: tcperrors.KindTimeout,
		},
		{
			name: "io deadline",
			err:  &net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded},
			kind: tcperrors.KindTimeout,
		},
		{
			name: "address error",
			err:  &net.AddrError{Err: "missing port in address", Addr: "localhost"},
			kind: tcperrors.KindInvalidAddress,
		},
		{
			name: "reset",
			err:  &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)},
			kind: tcperrors.KindTransport,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			kind: tcperrors.KindTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapNetError(tcperrors.PhaseConnect, "dial", "127.0.0.1:1", tt.err)
			if got.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, got.Kind)
			}
			if got.Phase != tcperrors.PhaseConnect {
				t.Errorf("expected connect phase, got %s", got.Phase)
			}
			if !errors.Is(got, tt.err) {
				t.Error("expected cause to stay reachable through errors.Is")
			}
		})
	}
}

func TestMapNetError_Nil(t *testing.T) {
	if got := mapNetError(tcperrors.PhaseRead, "read", "", nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestMapNetError_PassesThrough(t *testing.T) {
	orig := tcperrors.NotConnected("write")
	got := mapNetError(tcperrors.PhaseConnect, "dial", "", orig)
	if got != orig {
		t.Errorf("expected structured error to pass through, got %v", got)
	}
}

func TestMapNetError_DNS(t *testing.T) {
	tests := []struct {
		name   string
		err    *net.DNSError
		detail string
	}{
		{"not found", &net.DNSError{Name: "a.test", IsNotFound: true}, `name "a.test" not found`},
		{"temporary", &net.DNSError{Name: "b.test", IsTemporary: true}, `temporary resolver failure for "b.test"`},
		{"other", &net.DNSError{Name: "c.test"}, `resolver failure for "c.test"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapNetError(tcperrors.PhaseLookup, "lookup", tt.err.Name, tt.err)
			if got.Detail != tt.detail {
				t.Errorf("expected detail %q, got %q", tt.detail, got.Detail)
			}
			if !strings.Contains(got.Error(), "[lookup]") {
				t.Errorf("expected phase in message, got %q", got.Error())
			}
		})
	}
}

func TestIsClosedConn(t *testing.T) {
	if !isClosedConn(&net.OpError{Op: "read", Err: net.ErrClosed}) {
		t.Error("expected wrapped net.ErrClosed to match")
	}
	if isClosedConn(errors.New("use of closed network connection")) {
		t.Error("expected plain error not to match")
	}
}
