// Package tcpnet provides an event-driven TCP networking layer: sockets and
// servers with backpressure, half-close and idle timeouts, a socket address
// value type, and an address block list for access control.
//
// # Architecture Overview
//
//	tcpnet/              Root package with IP string helpers
//	├── address/         SocketAddress value type and address families
//	├── blocklist/       Address, range and subnet rules
//	├── tcp/             Socket, Server, transports and resolvers
//	├── loop/            Serial executor that drives sockets and servers
//	├── event/           Typed event streams
//	├── codec/           Text encodings for socket payloads
//	├── resource/        Handle table used for connection accounting
//	├── metrics/         Recorder interface and Prometheus implementation
//	├── errors/          Structured error types
//	└── cmd/tcpnet/      Command line client, server and block list checker
//
// # Quick Start
//
// Run an echo server:
//
//	srv := tcp.NewServer(tcp.ServerOptions{}, func(s *tcp.Socket) {
//	    s.OnData(func(d tcp.Data) { s.Write(d.Bytes(), nil) })
//	})
//	srv.Loop().Do(func() {
//	    srv.Listen(tcp.ListenOptions{Host: "127.0.0.1", Port: 7000}, nil)
//	})
//
// Block a subnet:
//
//	bl := blocklist.New()
//	if err := bl.AddSubnet("10.0.0.0", 8, address.IPv4); err != nil {
//	    log.Fatal(err)
//	}
//	srv := tcp.NewServer(tcp.ServerOptions{BlockList: bl}, nil)
//
// # Thread Safety
//
// Socket and Server are not safe for concurrent use. Their events run on a
// loop.Loop and their methods must be called from it; other goroutines hand
// work over with Loop().Post or Loop().Do. A BlockList may be checked
// concurrently once its rules are in place.
package tcpnet
