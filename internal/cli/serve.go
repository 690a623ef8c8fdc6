package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wadash/wadash/internal/alert"
	"github.com/wadash/wadash/internal/bot"
	"github.com/wadash/wadash/internal/botlog"
	"github.com/wadash/wadash/internal/command"
	"github.com/wadash/wadash/internal/config"
	"github.com/wadash/wadash/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bot platform and its dashboard API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.New(filepath.Join(cfg.Paths.DataDir, "wadash.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	broadcaster := botlog.NewBroadcaster()
	if cfg.Kafka.Enabled {
		sink := botlog.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer sink.Close()
		broadcaster.AddSink(sink)
		fmt.Printf("📡 Mirroring bot logs to kafka topic %s\n", cfg.Kafka.Topic)
	}

	registry := command.BuiltinRegistry()
	router := command.NewRouter(registry, st, func(tenantID, typ, message string, data map[string]any) {
		broadcaster.Publish(tenantID, botlog.NewEntry(typ, message, data))
	})

	alerts := alert.NewNotifier(cfg.Slack)
	bots := bot.NewRegistry(cfg.Paths.SessionDir, st, broadcaster, router, alerts)

	mux := http.NewServeMux()
	api := &apiServer{bots: bots, store: st, broadcaster: broadcaster}
	api.register(mux)

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)

		for _, info := range bots.Instances() {
			bots.Stop(info.TenantID)
		}
	}()

	fmt.Printf("🚀 wadash %s listening on %s\n", version, cfg.Server.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// apiServer exposes the registry operations to the dashboard. Auth and
// rate limiting live in front of this server, not here.
type apiServer struct {
	bots        *bot.Registry
	store       *store.Service
	broadcaster *botlog.Broadcaster
}

func (a *apiServer) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/bot", a.handleAction)
	mux.HandleFunc("GET /api/bot/status", a.handleStatus)
	mux.HandleFunc("GET /api/bot/instances", a.handleInstances)
	mux.HandleFunc("GET /api/bot/logs", a.handleLogs)
	mux.HandleFunc("GET /api/settings", a.handleGetSettings)
	mux.HandleFunc("POST /api/settings", a.handleSaveSettings)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type botActionRequest struct {
	Action string `json:"action"`
	Tenant string `json:"tenant"`
}

func (a *apiServer) handleAction(w http.ResponseWriter, r *http.Request) {
	var req botActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant is required")
		return
	}

	switch req.Action {
	case "start":
		if _, err := a.bots.Start(r.Context(), req.Tenant); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case "stop":
		a.bots.Stop(req.Tenant)
	case "delete-session":
		if err := a.bots.DeleteSession(req.Tenant); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown action "+req.Action)
		return
	}

	writeJSON(w, http.StatusOK, a.bots.Status(req.Tenant))
}

func (a *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant is required")
		return
	}
	writeJSON(w, http.StatusOK, a.bots.Status(tenant))
}

func (a *apiServer) handleInstances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.bots.Instances())
}

// handleLogs streams the tenant's log room over SSE, replaying the ring
// buffer first so new clients see recent history.
func (a *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, cancel := a.broadcaster.Subscribe(tenant)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(e botlog.Entry) bool {
		data, err := json.Marshal(e)
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(w, "event: log\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for _, e := range a.bots.Status(tenant).Logs {
		if !writeEvent(e) {
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if !writeEvent(e) {
				return
			}
		}
	}
}

func (a *apiServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant is required")
		return
	}
	set, err := a.store.Settings(tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, set)
}

type settingsRequest struct {
	Tenant   string         `json:"tenant"`
	Settings store.Settings `json:"settings"`
}

func (a *apiServer) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant is required")
		return
	}
	if req.Settings.Prefix == "" {
		req.Settings.Prefix = "!"
	}
	if err := a.store.UpdateSettings(req.Tenant, req.Settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req.Settings)
}
