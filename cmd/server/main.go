package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-qcm/internal/app"
	"github.com/p-n-ai/pai-qcm/internal/platform/config"
	"github.com/p-n-ai/pai-qcm/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newMux(a),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newMux creates the HTTP router.
func newMux(a *app.App) *http.ServeMux {
	h := &handlers{app: a}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", h.readyz)

	mux.HandleFunc("POST /v1/qcms", h.generate)
	mux.HandleFunc("GET /v1/qcms/stream", h.stream)
	mux.HandleFunc("GET /v1/pictos", h.resolvePicto)
	mux.HandleFunc("POST /v1/sentences", h.sentences)

	mux.HandleFunc("POST /v1/worksheets", h.createWorksheet)
	mux.HandleFunc("GET /v1/worksheets", h.listWorksheets)
	mux.HandleFunc("GET /v1/worksheets/{id}", h.getWorksheet)
	mux.HandleFunc("DELETE /v1/worksheets/{id}", h.deleteWorksheet)
	mux.HandleFunc("GET /v1/worksheets/{id}/export.xlsx", h.exportWorksheet)
	mux.HandleFunc("POST /v1/worksheets/{id}/grade", h.gradeWorksheet)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
