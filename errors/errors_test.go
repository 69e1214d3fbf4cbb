package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseConnect,
				Kind:    KindConnectionRefused,
				Op:      "dial",
				Address: "127.0.0.1:9",
				Detail:  "peer refused",
			},
			contains: []string{"[connect]", "connection_refused", "during dial", "at 127.0.0.1:9", "peer refused"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRead,
				Kind:  KindTransport,
			},
			contains: []string{"[read]", "transport"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseWrite,
				Kind:   KindTransport,
				Detail: "broken pipe",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[write]", "transport", "broken pipe", "caused by", "underlying error"},
		},
		{
			name:     "sentinel without phase",
			err:      ErrTimeout,
			contains: []string{"timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Transport(PhaseRead, "read", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseConnect,
		Kind:  KindConnectionRefused,
	}

	if !err.Is(&Error{Phase: PhaseConnect, Kind: KindConnectionRefused}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseListen, Kind: KindConnectionRefused}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseConnect, Kind: KindTimeout}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrConnectionRefused) {
		t.Error("errors.Is should match the kind sentinel regardless of phase")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrConnectionRefused) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NotConnected("write")); got != KindNotConnected {
		t.Errorf("KindOf = %q, want %q", got, KindNotConnected)
	}
	if got := KindOf(fmt.Errorf("x: %w", InvalidRange("b", "a"))); got != KindInvalidRange {
		t.Errorf("KindOf wrapped = %q, want %q", got, KindInvalidRange)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf plain = %q, want empty", got)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseListen, KindAddressInUse).
		Op("listen").
		Address("0.0.0.0:80").
		Value(80).
		Cause(cause).
		Detail("port %d busy", 80).
		Build()

	if err.Phase != PhaseListen {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseListen)
	}
	if err.Kind != KindAddressInUse {
		t.Errorf("Kind = %v, want %v", err.Kind, KindAddressInUse)
	}
	if err.Op != "listen" {
		t.Errorf("Op = %q, want listen", err.Op)
	}
	if err.Address != "0.0.0.0:80" {
		t.Errorf("Address = %q", err.Address)
	}
	if err.Value != 80 {
		t.Errorf("Value = %v, want 80", err.Value)
	}
	if err.Detail != "port 80 busy" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("Cause not set")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"invalid address", InvalidAddress(PhaseConstruct, "1.2.3", "ipv4"), KindInvalidAddress},
		{"invalid port", InvalidPort(PhaseConnect, 70000), KindInvalidAddress},
		{"invalid range", InvalidRange("10.0.0.2", "10.0.0.1"), KindInvalidRange},
		{"invalid prefix", InvalidPrefixLength(33, 32), KindInvalidPrefixLength},
		{"not connected", NotConnected("write"), KindNotConnected},
		{"server not running", ServerNotRunning(), KindServerNotRunning},
		{"transport", Transport(PhaseRead, "read", errors.New("x")), KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}
}
