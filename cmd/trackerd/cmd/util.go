package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"trackerd/internal/monitor"
)

func mkdirAllParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// serveMonitor runs a bare HTTP server exposing the websocket event
// feed at /events until ctx is canceled.
func serveMonitor(ctx context.Context, addr string, hub *monitor.Hub, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/events", hub)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("monitor server stopped", "error", err)
	}
}
