package main

import (
	"bytes"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/wippyai/tcpnet/tcp"
)

func TestHandleConnection_EchoBackpressure(t *testing.T) {
	const hwm = 16

	srv := tcp.NewServer(tcp.ServerOptions{HighWaterMark: hwm}, func(s *tcp.Socket) {
		handleConnection(s, true, 0, false)
		s.OnData(func(d tcp.Data) {
			if s.BufferSize() >= hwm+d.Len() {
				t.Errorf("write queue grew to %d bytes", s.BufferSize())
			}
		})
	})

	listening := make(chan struct{})
	errs := make(chan error, 1)
	srv.Loop().Do(func() {
		srv.OnError(func(err error) { errs <- err })
		srv.Listen(tcp.ListenOptions{Host: "127.0.0.1"}, func() { close(listening) })
	})
	select {
	case <-listening:
	case err := <-errs:
		t.Fatalf("listen: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for listening")
	}
	t.Cleanup(func() {
		srv.Loop().Do(func() {
			srv.DestroyConnections()
			srv.Close(nil)
		})
	})

	var port int
	srv.Loop().Do(func() { port = int(srv.Address().Port()) })

	conn, err := net.Dial("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	go func() {
		_, _ = conn.Write(payload)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	got := make([]byte, len(payload))
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("echoed payload differs")
	}
}
