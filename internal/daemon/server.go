package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/docpub/internal/history"
	"git.home.luguber.info/inful/docpub/internal/logfields"
	"git.home.luguber.info/inful/docpub/internal/version"
)

// httpServer exposes the webhook endpoint, health, status and metrics.
type httpServer struct {
	server *http.Server
}

func newHTTPServer(listen string, d *Daemon, registry *prom.Registry) *httpServer {
	mux := http.NewServeMux()
	mux.Handle("/webhook", &webhookHandler{
		secret:       func() string { return d.cfg().Daemon.WebhookSecret },
		sourceBranch: func() string { return d.cfg().Repository.Branch },
		enqueue:      d.queue.Enqueue,
	})
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/status", d.handleStatus)
	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return &httpServer{server: &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}}
}

func (s *httpServer) Start() {
	go func() {
		slog.Info("HTTP server listening", slog.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", logfields.Error(err))
		}
	}()
}

func (s *httpServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", logfields.Error(err))
	}
}

// statusResponse is the /status payload.
type statusResponse struct {
	Version   string        `json:"version"`
	QueueSize int           `json:"queue_size"`
	LastRun   *runStatus    `json:"last_run,omitempty"`
	Recent    []history.Run `json:"recent_runs,omitempty"`
}

type runStatus struct {
	RunID      string            `json:"run_id"`
	Trigger    string            `json:"trigger"`
	Outcome    string            `json:"outcome"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMS int64             `json:"duration_ms"`
	Stages     map[string]string `json:"stages,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Version:   version.Version,
		QueueSize: d.queue.Depth(),
	}
	if last := d.lastReport(); last != nil {
		status := &runStatus{
			RunID:      last.RunID,
			Trigger:    string(last.Trigger),
			Outcome:    string(last.Outcome),
			StartedAt:  last.StartedAt,
			DurationMS: last.Duration().Milliseconds(),
			Stages:     make(map[string]string, len(last.StageResults)),
		}
		for stage, result := range last.StageResults {
			status.Stages[string(stage)] = string(result)
		}
		if last.Err != nil {
			status.Error = last.Err.Error()
		}
		resp.LastRun = status
	}
	if d.store != nil {
		if runs, err := d.store.Recent(r.Context(), 5); err == nil {
			resp.Recent = runs
		}
	}
	writeJSON(w, resp)
}
