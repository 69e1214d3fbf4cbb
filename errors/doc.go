// Package errors provides structured error types for the tcpnet library.
//
// Errors are categorized by Phase (which operation was running) and Kind
// (error category). The Error type carries the operation, the address
// involved and the underlying cause.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConnect, errors.KindConnectionRefused).
//		Op("dial").
//		Address("127.0.0.1:9").
//		Cause(sysErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidAddress(errors.PhaseConstruct, "10.0.0.300", "ipv4")
//	err := errors.NotConnected("write")
//
// Kinds are matched with the standard library:
//
//	if errors.Is(err, errors.ErrNotConnected) { ... }
package errors
