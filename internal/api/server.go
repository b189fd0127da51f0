// Package api serves the read-only status views and the small admin surface
// of the gateway.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brewble/internal/config"
	"brewble/internal/dispatchlog"
	"brewble/internal/engine"
	"brewble/internal/metrics"
	"brewble/internal/model"
	"brewble/internal/storage"
)

type EngineControl interface {
	ResetLedger()
	UpdateConfig(cfg *config.Config)
	Status() engine.Status
	Devices() *metrics.Store
	Dispatches() *dispatchlog.Store
}

type Options struct {
	Config    *config.Manager
	Engine    EngineControl
	Registry  storage.Store
	Metrics   *prometheus.Registry
	ScanState func() string
	Logger    *slog.Logger
	Version   string
}

type Server struct {
	cfg       *config.Manager
	engine    EngineControl
	registry  storage.Store
	scanState func() string
	logger    *slog.Logger
	version   string
}

type statusResponse struct {
	Status     string        `json:"status"`
	Time       string        `json:"time"`
	Version    string        `json:"version"`
	ConfigPath string        `json:"config_path"`
	Scan       scanStatus    `json:"scan"`
	Ingest     ingestStatus  `json:"ingest"`
	Dispatch   dispatchState `json:"dispatch"`
	Pipeline   engine.Status `json:"pipeline"`
}

type scanStatus struct {
	Enabled bool   `json:"enabled"`
	Adapter string `json:"adapter"`
	State   string `json:"state"`
}

type ingestStatus struct {
	REST      bool `json:"rest"`
	FileTail  bool `json:"file_tail"`
	TCPStream bool `json:"tcp_stream"`
	Kafka     bool `json:"kafka"`
	MQTT      bool `json:"mqtt"`
}

type dispatchState struct {
	BaseURL string `json:"base_url"`
	Timeout string `json:"timeout"`
}

type debounceSettings struct {
	MinIntervalSeconds *int  `json:"min_interval_seconds"`
	RaptEnabled        *bool `json:"rapt_enabled,omitempty"`
}

func Start(ctx context.Context, opts Options) *http.Server {
	if opts.Config == nil {
		return nil
	}
	current := opts.Config.Get().API
	if !current.Enabled {
		if opts.Logger != nil {
			opts.Logger.Info("api disabled")
		}
		return nil
	}
	if opts.Logger != nil {
		opts.Logger.Info("api enabled", "addr", current.Addr)
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: NewHandler(opts), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if opts.Logger != nil {
				opts.Logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func NewHandler(opts Options) http.Handler {
	server := &Server{
		cfg:       opts.Config,
		engine:    opts.Engine,
		registry:  opts.Registry,
		scanState: opts.ScanState,
		logger:    opts.Logger,
		version:   opts.Version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/devices", server.handleDevices)
	mux.HandleFunc("/devices/", server.handleDevices)
	mux.HandleFunc("/dispatches", server.handleDispatches)
	mux.HandleFunc("/config/debounce", server.handleDebounce)
	mux.HandleFunc("/admin/clear", server.handleClear)
	mux.HandleFunc("/admin/reset-ledger", server.handleResetLedger)
	if opts.Metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	state := "stopped"
	if s.scanState != nil {
		state = s.scanState()
	}
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Scan:       scanStatus{Enabled: cfg.Scan.Enabled, Adapter: cfg.Scan.Adapter, State: state},
		Ingest: ingestStatus{
			REST:      cfg.Ingest.REST.Enabled,
			FileTail:  cfg.Ingest.FileTail.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
			MQTT:      cfg.Ingest.MQTT.Enabled,
		},
		Dispatch: dispatchState{BaseURL: cfg.Dispatch.BaseURL, Timeout: cfg.Dispatch.Timeout.String()},
	}
	if s.engine != nil {
		resp.Pipeline = s.engine.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/devices"), "/")
	if key != "" {
		s.handleDevice(w, r, key)
		return
	}
	resp := map[string]any{}
	if s.engine != nil {
		all := s.engine.Devices().GetAll()
		resp["devices"] = all
		resp["count"] = len(all)
	}
	if s.registry != nil {
		list, err := s.registry.ListDevices(r.Context())
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("device registry read failed", "err", err)
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp["registry"] = list
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request, key string) {
	resp := map[string]any{"device_key": key}
	found := false
	if s.engine != nil {
		if st, ok := s.engine.Devices().Get(key); ok {
			resp["status"] = st
			found = true
		}
	}
	if s.registry != nil {
		info, err := s.registry.GetDevice(r.Context(), key)
		switch {
		case err == nil:
			resp["registry"] = info
			found = true
		case !errors.Is(err, storage.ErrNotFound):
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDispatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine == nil {
		writeJSON(w, http.StatusOK, map[string]any{"dispatches": []model.DispatchRecord{}, "count": 0})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.DispatchRecord
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.engine.Dispatches().Since(ts)
	} else {
		list = s.engine.Dispatches().List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dispatches": list,
		"count":      len(list),
	})
}

func (s *Server) handleDebounce(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.cfg.Get()
		secs := int(cfg.Debounce.MinInterval / time.Second)
		rapt := cfg.Dispatch.RaptEnabled
		writeJSON(w, http.StatusOK, debounceSettings{MinIntervalSeconds: &secs, RaptEnabled: &rapt})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var req debounceSettings
		if err := json.Unmarshal(body, &req); err != nil || req.MinIntervalSeconds == nil || *req.MinIntervalSeconds < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		current := s.cfg.Get()
		next := *current
		next.Debounce.MinInterval = time.Duration(*req.MinIntervalSeconds) * time.Second
		if req.RaptEnabled != nil {
			next.Dispatch.RaptEnabled = *req.RaptEnabled
		}
		if err := s.cfg.Update(&next); err != nil {
			if s.logger != nil {
				s.logger.Error("config update failed", "err", err)
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if s.engine != nil {
			s.engine.UpdateConfig(&next)
		}
		if s.logger != nil {
			s.logger.Info("debounce updated", "min_interval", next.Debounce.MinInterval, "rapt_enabled", next.Dispatch.RaptEnabled)
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	if s.engine == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	switch target {
	case "all":
		s.engine.Devices().Clear()
		s.engine.Dispatches().Clear()
	case "devices":
		s.engine.Devices().Clear()
	case "dispatches":
		s.engine.Dispatches().Clear()
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleResetLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine != nil {
		s.engine.ResetLedger()
	}
	if s.logger != nil {
		s.logger.Info("debounce ledger reset")
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
