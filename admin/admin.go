// Package admin serves the metrics and inspection endpoint of the proxy.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Mmx233/ProtoBridge/protocols"
	"github.com/Mmx233/ProtoBridge/server/pool"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sources are the live views the endpoint reports.
type Sources struct {
	Gatherer  prometheus.Gatherer
	Sessions  *pool.Sessions
	Upstreams *pool.UpstreamPool
	Schema    *protocols.Set
}

type UpstreamInfo struct {
	Addr           string `json:"addr"`
	Healthy        bool   `json:"healthy"`
	ActiveSessions int64  `json:"active_sessions"`
	TotalSessions  uint64 `json:"total_sessions"`
	FailedDials    uint64 `json:"failed_dials"`
}

// NewRouter builds the admin routes.
func NewRouter(src Sources) http.Handler {
	logger := log.With().Str("com", "admin").Logger()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthy := src.Upstreams.HealthyCount()
		status := http.StatusOK
		state := "ok"
		if healthy == 0 {
			status = http.StatusServiceUnavailable
			state = "no healthy upstream"
		}
		writeJSON(w, status, map[string]any{
			"status":            state,
			"upstreams_healthy": healthy,
			"sessions":          src.Sessions.Count(),
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(src.Gatherer, promhttp.HandlerOpts{}))

	r.Get("/upstreams", func(w http.ResponseWriter, r *http.Request) {
		list := src.Upstreams.List()
		out := make([]UpstreamInfo, len(list))
		for i, u := range list {
			out[i] = UpstreamInfo{
				Addr:           u.Addr,
				Healthy:        u.Healthy(),
				ActiveSessions: u.ActiveSessions.Load(),
				TotalSessions:  u.TotalSessions.Load(),
				FailedDials:    u.FailedDials.Load(),
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, src.Sessions.Snapshot())
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			s, ok := src.Sessions.Get(chi.URLParam(r, "id"))
			if !ok {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			writeJSON(w, http.StatusOK, s.Info())
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if !src.Sessions.Kick(chi.URLParam(r, "id")) {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Route("/schema", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"current":  protocols.Name(protocols.Current),
				"versions": protocols.Versions(),
				"kinds":    src.Schema.Describe(),
			})
		})
		r.Get("/{kind}", func(w http.ResponseWriter, r *http.Request) {
			kind := chi.URLParam(r, "kind")
			for _, info := range src.Schema.Describe() {
				if string(info.Kind) == kind {
					writeJSON(w, http.StatusOK, info)
					return
				}
			}
			writeError(w, http.StatusNotFound, "unknown kind")
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("admin request")
		})
	}
}

// Serve runs the admin endpoint on addr until ctx ends.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	logger := log.With().Str("com", "admin").Logger()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("admin endpoint started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
