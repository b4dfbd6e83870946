package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HealthHandlers supplies the liveness and readiness handlers mounted next to /metrics.
type HealthHandlers interface {
	LiveHandler() http.HandlerFunc
	ReadyHandler() http.HandlerFunc
}

func newMux(health HealthHandlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	if health != nil {
		mux.HandleFunc("/healthz", health.LiveHandler())
		mux.HandleFunc("/readyz", health.ReadyHandler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>indexrelay node</h1><p><a href="/metrics">/metrics</a> <a href="/readyz">/readyz</a></p></body></html>`)
	})
	return mux
}

func StartServer(port int, health HealthHandlers) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      newMux(health),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}
