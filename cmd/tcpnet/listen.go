package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/tcpnet/metrics"
	"github.com/wippyai/tcpnet/tcp"
)

const shutdownGrace = 5 * time.Second

type listenFlags struct {
	host           string
	port           int
	admin          string
	maxConnections int
	dropPolicy     string
	rules          []string
	echo           bool
	idle           time.Duration
	pause          bool
}

func listenCmd(a *app) *cobra.Command {
	var f listenFlags

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run a TCP server",
		Long: `Run a TCP server that prints what peers send, or echoes it back.

An admin HTTP endpoint serves Prometheus metrics, the live connection
count and block list checks when --admin is set.

Examples:
  tcpnet listen --port 7000 --echo
  tcpnet listen --max-connections 100 --rule 10.0.0.0/8 --admin :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Host = f.host
			}
			if flags.Changed("port") {
				cfg.Port = f.port
			}
			if flags.Changed("admin") {
				cfg.AdminAddr = f.admin
			}
			if flags.Changed("max-connections") {
				cfg.MaxConnections = f.maxConnections
			}
			if flags.Changed("drop-policy") {
				p, err := parseDropPolicy(f.dropPolicy)
				if err != nil {
					return err
				}
				cfg.DropPolicy = p
			}
			if flags.Changed("idle-timeout") {
				cfg.IdleTimeout = f.idle
			}
			cfg.Block = append(cfg.Block, f.rules...)
			return runListen(cmd.Context(), cfg, f, a.logger)
		},
	}

	cmd.Flags().StringVarP(&f.host, "host", "H", defaultHost, "Address to bind")
	cmd.Flags().IntVarP(&f.port, "port", "p", defaultPort, "Port to bind (0 picks one)")
	cmd.Flags().StringVar(&f.admin, "admin", "", "Admin HTTP address, e.g. :9090")
	cmd.Flags().IntVarP(&f.maxConnections, "max-connections", "m", 0, "Connection limit (0 for none)")
	cmd.Flags().StringVar(&f.dropPolicy, "drop-policy", "destroy", "What to do over the limit: destroy or defer")
	cmd.Flags().StringArrayVarP(&f.rules, "rule", "r", nil, "Block rule (repeatable)")
	cmd.Flags().BoolVarP(&f.echo, "echo", "e", false, "Echo received data back to the peer")
	cmd.Flags().DurationVar(&f.idle, "idle-timeout", 0, "End connections idle this long")
	cmd.Flags().BoolVar(&f.pause, "pause-on-connect", false, "Accept paused and resume after logging the peer")

	return cmd
}

func runListen(ctx context.Context, cfg config, f listenFlags, logger *zap.Logger) error {
	bl, err := buildBlockList(cfg.Block)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheus(metrics.WithRegistry(reg))

	srv := tcp.NewServer(tcp.ServerOptions{
		MaxConnections: cfg.MaxConnections,
		DropPolicy:     cfg.DropPolicy,
		BlockList:      bl,
		PauseOnConnect: f.pause,
		Metrics:        rec,
		Logger:         logger,
	}, func(s *tcp.Socket) {
		handleConnection(s, f.echo, cfg.IdleTimeout, f.pause)
	})

	listening := make(chan struct{})
	listenErr := make(chan error, 1)
	srv.Loop().Do(func() {
		srv.OnError(func(err error) {
			if srv.Listening() {
				errorMsg("%s", err)
				return
			}
			select {
			case listenErr <- err:
			default:
			}
		})
		srv.OnDrop(func(d tcp.DropInfo) {
			warn("dropped %s (%s)", d.Remote, d.Reason)
		})
		srv.Listen(tcp.ListenOptions{Host: cfg.Host, Port: cfg.Port}, func() { close(listening) })
	})

	select {
	case <-listening:
	case err := <-listenErr:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	var bound string
	srv.Loop().Do(func() {
		if addr := srv.Address(); addr != nil {
			bound = addr.String()
		}
	})
	success("listening on %s", bound)
	if cfg.MaxConnections > 0 {
		info("max connections %d, policy %s", cfg.MaxConnections, cfg.DropPolicy)
	}
	if bl.Len() > 0 {
		info("%d block rules", bl.Len())
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var httpSrv *http.Server
	if cfg.AdminAddr != "" {
		httpSrv = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           newAdminRouter(srv, bl, reg, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		info("admin on http://%s", cfg.AdminAddr)
		g.Go(func() error {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Println()
		info("shutting down")
		return shutdown(srv, httpSrv)
	})

	return g.Wait()
}

func handleConnection(s *tcp.Socket, echo bool, idle time.Duration, paused bool) {
	remote, _ := s.Remote()
	success("connection from %s", remote)

	if echo {
		s.OnDrain(s.Resume)
	}
	s.OnData(func(d tcp.Data) {
		if echo {
			if ok, err := s.Write(d.Bytes(), nil); err == nil && !ok {
				s.Pause()
			}
			return
		}
		fmt.Printf("%s %s", infoStyle.Render(remote.String()+">"), d.String())
	})
	s.OnError(func(err error) {
		errorMsg("%s: %s", remote, err)
	})
	s.OnClose(func(hadError bool) {
		if hadError {
			warn("closed %s with error (read %d, wrote %d)", remote, s.BytesRead(), s.BytesWritten())
			return
		}
		info("closed %s (read %d, wrote %d)", remote, s.BytesRead(), s.BytesWritten())
	})
	if idle > 0 {
		s.SetTimeout(idle, func() {
			warn("idle timeout for %s", remote)
			s.End(nil, nil)
		})
	}
	if paused {
		s.Resume()
	}
}

// shutdown stops accepting, ends every live connection and waits for them
// to close. Connections still open after the grace period are destroyed.
func shutdown(srv *tcp.Server, httpSrv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	var err error
	if httpSrv != nil {
		err = multierr.Append(err, httpSrv.Shutdown(ctx))
	}

	closed := make(chan error, 1)
	srv.Loop().Do(func() {
		srv.EachConnection(func(s *tcp.Socket) bool {
			s.End(nil, nil)
			return true
		})
		srv.Close(func(err error) { closed <- err })
	})

	select {
	case cerr := <-closed:
		err = multierr.Append(err, cerr)
	case <-ctx.Done():
		srv.Loop().Do(srv.DestroyConnections)
		err = multierr.Append(err, <-closed)
	}
	return err
}
