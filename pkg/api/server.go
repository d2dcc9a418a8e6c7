package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rmax-ai/usagewatch/pkg/engine"
	"github.com/rmax-ai/usagewatch/pkg/notify"
	"github.com/rmax-ai/usagewatch/pkg/usage"
)

const maxBodyBytes = 1 << 20

// Dispatcher delivers one event and waits for its response.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev engine.Event) engine.Response
}

// SettingsSource reads the stored settings record.
type SettingsSource interface {
	LoadSettings(ctx context.Context) (usage.Settings, error)
}

// Surface exposes what was last shown to the user.
type Surface interface {
	Badge() notify.Badge
	Notifications() []notify.Notification
}

// ScheduleLister reports the active alarms.
type ScheduleLister interface {
	Schedules() []engine.ScheduleInfo
}

type Server struct {
	dispatcher Dispatcher
	settings   SettingsSource
	surface    Surface
	schedules  ScheduleLister
	logger     zerolog.Logger
	router     chi.Router
	server     *http.Server
}

// NewServer creates a new API server instance
func NewServer(d Dispatcher, settings SettingsSource, addr string, logger zerolog.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:8090"
	}

	s := &Server{
		dispatcher: d,
		settings:   settings,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(s.withLogging)
	r.Use(s.withRecovery)
	r.Use(withSecureHeaders)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", handleHealth)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/usage", s.handleUsage)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)
		r.Post("/test-notification", s.handleTestNotification)
		r.Get("/badge", s.handleBadge)
		r.Get("/notifications", s.handleNotifications)
		r.Get("/schedules", s.handleSchedules)
	})

	s.router = r
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
		// A refresh waits for the upstream fetch.
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// SetSurface enables the badge and notification read endpoints.
func (s *Server) SetSurface(surface Surface) {
	s.surface = surface
}

func (s *Server) SetSchedules(l ScheduleLister) {
	s.schedules = l
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return s.server.Addr
}

// Start blocks until the server is stopped.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("server_starting")
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("server_stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	resp := s.dispatcher.Dispatch(r.Context(), engine.Event{Kind: engine.EventRefresh})
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, actionFrom(resp))
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	resp := s.dispatcher.Dispatch(r.Context(), engine.Event{Kind: engine.EventGetUsage})
	if !resp.Success || resp.Cached == nil {
		writeError(w, http.StatusInternalServerError, resp.Error)
		return
	}
	writeJSON(w, http.StatusOK, resp.Cached)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.LoadSettings(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load settings")
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Settings: settings})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ActionResponse{Error: "invalid_json_body"})
		return
	}
	if len(req.Settings) == 0 {
		writeJSON(w, http.StatusBadRequest, ActionResponse{Error: "settings are required"})
		return
	}
	settings, err := usage.MergeSettings(req.Settings)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ActionResponse{Error: err.Error()})
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), engine.Event{Kind: engine.EventSettingsUpdated, Settings: &settings})
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ActionResponse{Success: resp.Success, Error: resp.Error})
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	resp := s.dispatcher.Dispatch(r.Context(), engine.Event{Kind: engine.EventTestNotification})
	status := http.StatusOK
	switch {
	case resp.Success:
	case resp.Error == engine.ErrNoCachedUsage.Error():
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ActionResponse{Success: resp.Success, Error: resp.Error})
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	if s.surface == nil {
		writeError(w, http.StatusNotFound, "badge not available")
		return
	}
	b := s.surface.Badge()
	writeJSON(w, http.StatusOK, BadgeResponse{Text: b.Text, Color: b.Color})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.surface == nil {
		writeError(w, http.StatusNotFound, "notifications not available")
		return
	}
	list := s.surface.Notifications()
	if list == nil {
		list = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: list})
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	out := []ScheduleResponse{}
	if s.schedules != nil {
		for _, sch := range s.schedules.Schedules() {
			out = append(out, ScheduleResponse{Name: sch.Name, PeriodSeconds: int64(sch.Period / time.Second)})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

// Middleware: Panic Recovery
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.logger.Error().
					Interface("panic", rvr).
					Str("path", r.URL.Path).
					Str("request_id", chiMiddleware.GetReqID(r.Context())).
					Msg("panic_recovered")
				writeError(w, http.StatusInternalServerError, "internal_server_error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := chiMiddleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
