package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cache-telemetry-service/internal/core/ports"
	"cache-telemetry-service/internal/core/service"
	"cache-telemetry-service/internal/event"
	"cache-telemetry-service/internal/eventlog"
	"cache-telemetry-service/internal/traceable"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

type handlers struct {
	svc    ports.StatsService
	log    *eventlog.Log
	caches map[string]*traceable.Cache
	logger *zap.Logger
}

func (h *handlers) routes(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /events", h.record)
	mux.HandleFunc("GET /events/export", h.export)
	mux.HandleFunc("GET /stats", h.stats)
	mux.HandleFunc("GET /stats/total", h.totals)
	mux.HandleFunc("GET /calls", h.calls)
	mux.HandleFunc("POST /reset", h.reset)

	mux.HandleFunc("GET /cache/get", h.cacheGet)
	mux.HandleFunc("GET /cache/mget", h.cacheGetMulti)
	mux.HandleFunc("GET /cache/has", h.cacheHas)
	mux.HandleFunc("POST /cache/set", h.cacheSet)
	mux.HandleFunc("POST /cache/delete", h.cacheDelete)
	mux.HandleFunc("POST /cache/clear", h.cacheClear)

	mux.Handle("GET /metrics", promhttp.HandlerFor(
		prometheus.Gatherers{registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	))
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return mux
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Register(r.Context(), r.URL.Query().Get("source")); err != nil {
		h.fail(w, err)
		return
	}
	w.Write([]byte("ok"))
}

// record accepts a JSON array of events for ?source=.
func (h *handlers) record(w http.ResponseWriter, r *http.Request) {
	var events []event.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&events); err != nil {
		http.Error(w, "invalid events: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.svc.Record(r.Context(), r.URL.Query().Get("source"), events...); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.log.Export(w); err != nil {
		h.logger.Error("failed to export event log", zap.Error(err))
	}
}

// stats collects and returns the full report.
func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Collect(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, report)
}

func (h *handlers) totals(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Totals())
}

func (h *handlers) calls(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Calls())
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset(r.Context())
	w.Write([]byte("ok"))
}

func (h *handlers) cache(w http.ResponseWriter, r *http.Request) (*traceable.Cache, string, bool) {
	q := r.URL.Query()
	c, ok := h.caches[q.Get("source")]
	if !ok {
		http.Error(w, "unknown source", http.StatusNotFound)
		return nil, "", false
	}
	key := q.Get("key")
	if key == "" && !strings.HasSuffix(r.URL.Path, "/clear") && !strings.HasSuffix(r.URL.Path, "/mget") {
		http.Error(w, "missing key", http.StatusBadRequest)
		return nil, "", false
	}
	return c, key, true
}

func (h *handlers) cacheGet(w http.ResponseWriter, r *http.Request) {
	c, key, ok := h.cache(w, r)
	if !ok {
		return
	}
	val, found, err := c.Get(r.Context(), key)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Write(val)
}

func (h *handlers) cacheGetMulti(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.cache(w, r)
	if !ok {
		return
	}
	var keys []string
	for _, k := range strings.Split(r.URL.Query().Get("keys"), ",") {
		if k != "" {
			keys = append(keys, k)
		}
	}
	found, err := c.GetMulti(r.Context(), keys)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make(map[string]string, len(found))
	for k, v := range found {
		out[k] = string(v)
	}
	h.writeJSON(w, out)
}

func (h *handlers) cacheHas(w http.ResponseWriter, r *http.Request) {
	c, key, ok := h.cache(w, r)
	if !ok {
		return
	}
	found, err := c.Has(r.Context(), key)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, map[string]bool{"found": found})
}

func (h *handlers) cacheSet(w http.ResponseWriter, r *http.Request) {
	c, key, ok := h.cache(w, r)
	if !ok {
		return
	}
	var ttl time.Duration
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		var err error
		if ttl, err = time.ParseDuration(raw); err != nil {
			http.Error(w, "invalid ttl", http.StatusBadRequest)
			return
		}
	}
	if err := c.Set(r.Context(), key, []byte(r.URL.Query().Get("value")), ttl); err != nil {
		h.fail(w, err)
		return
	}
	w.Write([]byte("ok"))
}

func (h *handlers) cacheDelete(w http.ResponseWriter, r *http.Request) {
	c, key, ok := h.cache(w, r)
	if !ok {
		return
	}
	if err := c.Delete(r.Context(), key); err != nil {
		h.fail(w, err)
		return
	}
	w.Write([]byte("ok"))
}

func (h *handlers) cacheClear(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.cache(w, r)
	if !ok {
		return
	}
	if err := c.Clear(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	w.Write([]byte("ok"))
}

func (h *handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSource), errors.Is(err, eventlog.ErrEmptySource):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
