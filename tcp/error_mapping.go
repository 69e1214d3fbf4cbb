package tcp

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"

	pkgerrors "github.com/pkg/errors"

	tcperrors "github.com/wippyai/tcpnet/errors"
)

// mapNetError converts net package errors to structured errors. The cause
// keeps the original error, with a stack attached.
func mapNetError(phase tcperrors.Phase, op, addr string, err error) *tcperrors.Error {
	if err == nil {
		return nil
	}

	var te *tcperrors.Error
	if errors.As(err, &te) {
		return te
	}

	b := tcperrors.New(phase, kindOf(err)).
		Op(op).
		Address(addr).
		Cause(pkgerrors.WithStack(err))

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			b.Detail("name %q not found", dnsErr.Name)
		case dnsErr.IsTemporary:
			b.Detail("temporary resolver failure for %q", dnsErr.Name)
		default:
			b.Detail("resolver failure for %q", dnsErr.Name)
		}
	}

	return b.Build()
}

func kindOf(err error) tcperrors.Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return tcperrors.KindTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return mapOpError(opErr)
	}

	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return tcperrors.KindInvalidAddress
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return mapErrno(errno)
	}

	if os.IsTimeout(err) {
		return tcperrors.KindTimeout
	}

	return tcperrors.KindTransport
}

func mapOpError(opErr *net.OpError) tcperrors.Kind {
	var errno syscall.Errno
	if errors.As(opErr.Err, &errno) {
		return mapErrno(errno)
	}

	if opErr.Timeout() {
		return tcperrors.KindTimeout
	}

	var addrErr *net.AddrError
	if errors.As(opErr.Err, &addrErr) {
		return tcperrors.KindInvalidAddress
	}

	if opErr.Err != nil {
		switch opErr.Err.Error() {
		case "connection refused":
			return tcperrors.KindConnectionRefused
		case "address already in use":
			return tcperrors.KindAddressInUse
		}
	}

	return tcperrors.KindTransport
}

func mapErrno(errno syscall.Errno) tcperrors.Kind {
	switch errno {
	case syscall.EADDRINUSE:
		return tcperrors.KindAddressInUse
	case syscall.EADDRNOTAVAIL, syscall.EAFNOSUPPORT:
		return tcperrors.KindInvalidAddress
	case syscall.ECONNREFUSED:
		return tcperrors.KindConnectionRefused
	case syscall.ETIMEDOUT:
		return tcperrors.KindTimeout
	case syscall.ENOTCONN:
		return tcperrors.KindNotConnected
	default:
		return tcperrors.KindTransport
	}
}

// isClosedConn reports errors caused by our own Close.
func isClosedConn(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
