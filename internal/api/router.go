// Package api exposes the host registry over HTTP for `vhosts serve`.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/vhosts/internal/application/hosts"
	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/log"
	"github.com/zjrosen/vhosts/internal/tracing"
)

// HostService is the subset of hosts.Service the handlers call.
type HostService interface {
	ReplaceAll(ctx context.Context, reg vhost.Registry) error
	UpsertHost(ctx context.Context, host vhost.Host) (bool, error)
	DeleteOne(ctx context.Context, domain string) error
	ToggleActive(ctx context.Context, domain string) (vhost.Host, error)
	SetAllActive(ctx context.Context, active bool) (int, error)
}

// NewRouter creates the HTTP router. Reads go through lister, which may be a
// hosts.CachedLister; writes go through svc. A nil tracer disables spans.
func NewRouter(svc HostService, lister hosts.Lister, tracer trace.Tracer) http.Handler {
	h := &HostHandler{svc: svc, lister: lister}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	if tracer != nil {
		r.Use(tracing.Middleware(tracer))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/hosts", func(r chi.Router) {
		r.Get("/", h.List)
		r.Put("/", h.Replace)
		r.Post("/activate-all", h.ActivateAll)
		r.Post("/deactivate-all", h.DeactivateAll)
		r.Put("/{domain}", h.Upsert)
		r.Delete("/{domain}", h.Delete)
		r.Post("/{domain}/toggle", h.Toggle)
	})

	return r
}

// requestLogger records method, route, status and duration under the api category.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug(log.CatAPI, "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started))
	})
}

// Serve runs an HTTP server on addr until ctx is canceled, then shuts it down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(log.CatAPI, "Listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info(log.CatAPI, "Shutting down server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
