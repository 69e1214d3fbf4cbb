// Package tcp provides event-driven TCP sockets and servers.
//
// Every Socket and Server is driven by a loop.Loop. Events are delivered on
// that loop one at a time, and methods must be called from it: inside an
// event handler, or through Loop().Post and Loop().Do from other
// goroutines. Network I/O runs on helper goroutines that post their
// results back to the loop, so no method blocks.
//
// # Sockets
//
//	sock := tcp.CreateConnection(tcp.ConnectOptions{Host: "example.com", Port: 80}, tcp.SocketOptions{}, func() {
//	    // connected
//	})
//	sock.OnData(func(d tcp.Data) { ... })
//	sock.OnClose(func(hadError bool) { ... })
//
// A socket moves through Unconnected, Connecting, Connected, Ending and
// Destroyed. A failed connect reports an error and returns to Unconnected.
// Destroy is the only cancellation: completions that arrive after it are
// dropped and close is always the last event.
//
// Write copies its payload and reports false once the buffered bytes reach
// the high-water mark; a drain event follows when the buffer falls below
// it again. Pause stops delivery and, once ReadBufferSize bytes are held,
// stops reading, which pushes back on the peer through TCP flow control.
//
// Transport errors are reported through the error event without
// destroying the socket. The hadError flag of close tells whether the
// socket ended because of one.
//
// # Servers
//
// A Server listens through a Transport and emits connection for each
// accepted peer. Peers matched by the BlockList or over MaxConnections are
// closed at once and reported through OnDrop instead. With DropDefer the
// server stops accepting at the limit rather than closing extra peers.
// Close stops accepting and completes once every accepted socket has
// closed.
package tcp
