package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wippyai/tcpnet/address"
	"github.com/wippyai/tcpnet/blocklist"
)

// connectionCounter is the part of tcp.Server the admin API reads. Both
// methods are safe off the server's loop.
type connectionCounter interface {
	Connections() int
	MaxConnections() int
}

type admin struct {
	conns  connectionCounter
	block  *blocklist.BlockList
	logger *zap.Logger
}

// newAdminRouter serves /metrics from gatherer, connection counts, and
// block list inspection.
func newAdminRouter(conns connectionCounter, bl *blocklist.BlockList, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	a := &admin{conns: conns, block: bl, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/connections", a.connections)
	r.Route("/blocklist", func(r chi.Router) {
		r.Get("/", a.rules)
		r.Get("/check", a.check)
	})
	return r
}

func (a *admin) connections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"connections":     a.conns.Connections(),
		"max_connections": a.conns.MaxConnections(),
	})
}

func (a *admin) rules(w http.ResponseWriter, _ *http.Request) {
	rules := []string{}
	if a.block != nil {
		for _, r := range a.block.Rules() {
			rules = append(rules, r.String())
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"rules": rules})
}

func (a *admin) check(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("address")
	fam, err := familyOf(addr)
	if f := r.URL.Query().Get("family"); f != "" {
		var ok bool
		if fam, ok = address.ParseFamily(f); !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown family " + f})
			return
		}
		_, err = address.ParseAddr(addr, fam)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	blocked := a.block != nil && a.block.Check(addr, fam)
	a.logger.Debug("block list check",
		zap.String("address", addr),
		zap.Stringer("family", fam),
		zap.Bool("blocked", blocked),
		zap.String("request_id", middleware.GetReqID(r.Context())))

	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr,
		"family":  fam.String(),
		"blocked": blocked,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
