package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/tcpnet/address"
	"github.com/wippyai/tcpnet/codec"
	"github.com/wippyai/tcpnet/event"
	"github.com/wippyai/tcpnet/tcp"
)

type connectFlags struct {
	family      string
	timeout     time.Duration
	encoding    string
	halfOpen    bool
	interactive string
}

func connectCmd(a *app) *cobra.Command {
	var f connectFlags

	cmd := &cobra.Command{
		Use:   "connect [host] port",
		Short: "Connect to a TCP server",
		Long: `Connect to a TCP server. On a terminal this opens an interactive
session; otherwise stdin is sent to the peer and received data is
written to stdout until either side ends.

Examples:
  tcpnet connect 7000
  tcpnet connect example.com 80 < request.txt
  tcpnet connect --family ipv6 ::1 7000`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := a.cfg.Host
			portArg := args[0]
			if len(args) == 2 {
				host, portArg = args[0], args[1]
			}
			port, err := strconv.Atoi(portArg)
			if err != nil {
				return fmt.Errorf("invalid port %q", portArg)
			}

			opts := tcp.ConnectOptions{
				Host:    host,
				Port:    port,
				Timeout: a.cfg.ConnectTimeout,
			}
			if cmd.Flags().Changed("timeout") {
				opts.Timeout = f.timeout
			}
			if f.family != "" {
				fam, ok := address.ParseFamily(f.family)
				if !ok {
					return fmt.Errorf("unknown family %q", f.family)
				}
				opts.Family = fam
			}
			enc, err := codec.Lookup(f.encoding)
			if err != nil {
				return err
			}

			interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
			switch f.interactive {
			case "always":
				interactive = true
			case "never":
				interactive = false
			}

			if interactive {
				// the TUI owns the terminal
				return runInteractive(opts, tcp.SocketOptions{Logger: zap.NewNop()}, enc)
			}
			return runPipe(opts, tcp.SocketOptions{AllowHalfOpen: f.halfOpen, Logger: a.logger}, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&f.family, "family", "f", "", "Address family: ipv4 or ipv6")
	cmd.Flags().DurationVarP(&f.timeout, "timeout", "t", 0, "Connect timeout")
	cmd.Flags().StringVar(&f.encoding, "encoding", "utf8", "Text encoding in interactive mode")
	cmd.Flags().BoolVar(&f.halfOpen, "half-open", true, "Keep reading after stdin ends")
	cmd.Flags().StringVar(&f.interactive, "interactive", "auto", "Interactive mode: auto, always or never")

	return cmd
}

// runPipe copies in to the socket and the socket to out. It returns once
// the socket has closed.
func runPipe(opts tcp.ConnectOptions, sockOpts tcp.SocketOptions, in io.Reader, out io.Writer) error {
	sock := tcp.NewSocket(sockOpts)

	var firstErr error
	closed := make(chan struct{})
	sock.Loop().Do(func() {
		sock.OnData(func(d tcp.Data) {
			if _, err := out.Write(d.Bytes()); err != nil {
				sock.Destroy(err)
			}
		})
		sock.OnError(func(err error) {
			if firstErr == nil {
				firstErr = err
			}
			if sock.State() == tcp.StateUnconnected {
				// connect failed, there is no close to wait for
				close(closed)
			}
		})
		sock.OnClose(func(bool) { close(closed) })
		sock.Connect(opts, func() {
			go pumpInput(sock, in, closed)
		})
	})

	<-closed
	var err error
	sock.Loop().Do(func() { err = firstErr })
	return err
}

// pumpInput writes in to sock, waiting for drain whenever a write reports
// backpressure, and ends the socket at EOF.
func pumpInput(sock *tcp.Socket, in io.Reader, closed <-chan struct{}) {
	buf := make([]byte, 32*1024)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			var (
				werr    error
				drained chan struct{}
			)
			sock.Loop().Do(func() {
				var ok bool
				ok, werr = sock.Write(buf[:n], nil)
				if werr != nil || ok {
					return
				}
				drained = make(chan struct{})
				var sub event.Subscription
				sub = sock.OnDrain(func() {
					sub.Cancel()
					close(drained)
				})
			})
			if werr != nil {
				return
			}
			if drained != nil {
				select {
				case <-drained:
				case <-closed:
					return
				}
			}
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				sock.Loop().Do(func() { sock.Destroy(rerr) })
				return
			}
			sock.Loop().Do(func() { sock.End(nil, nil) })
			return
		}
	}
}
