package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/devid8642/weather-alert/pkg/metrics"
	"github.com/devid8642/weather-alert/pkg/monitor"
	"github.com/devid8642/weather-alert/pkg/schedule"
	"github.com/devid8642/weather-alert/pkg/storage"
)

const requestTimeout = 10 * time.Second

// Config carries the values the API needs beyond its collaborators.
type Config struct {
	// WebhookSecret authenticates the notify callback. Empty rejects every call.
	WebhookSecret string
	APIBaseURL    string
	Version       string

	// RateLimit uses the limiter format, e.g. "120-M". Empty disables it.
	RateLimit   string
	MaxBodySize int64
	Metrics     *metrics.Metrics
}

// Server exposes the REST API over locations, alert configs, alerts and
// temperature logs.
type Server struct {
	storage  storage.Storage
	sync     *schedule.Synchronizer
	alerts   *monitor.AlertService
	cfg      Config
	metrics  *metrics.Metrics
	limiter  *limiter.Limiter
	validate *validator.Validate
	mux      *http.ServeMux
	logger   *slog.Logger
}

// NewServer creates an API server.
func NewServer(store storage.Storage, sync *schedule.Synchronizer, alertSvc *monitor.AlertService, cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 1 << 20
	}

	s := &Server{
		storage:  store,
		sync:     sync,
		alerts:   alertSvc,
		cfg:      cfg,
		metrics:  cfg.Metrics,
		validate: newValidator(),
		mux:      http.NewServeMux(),
		logger:   logger,
	}

	if cfg.RateLimit != "" {
		rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("parse rate limit %q: %w", cfg.RateLimit, err)
		}
		s.limiter = limiter.New(memory.NewStore(), rate)
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/meta", s.handleMeta)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("POST /locations/{$}", s.handleCreateLocation)
	s.mux.HandleFunc("GET /locations/{$}", s.handleListLocations)
	s.mux.HandleFunc("GET /locations/{id}/{$}", s.handleGetLocation)
	s.mux.HandleFunc("DELETE /locations/{id}/{$}", s.handleDeleteLocation)

	s.mux.HandleFunc("POST /alert-configs/{$}", s.handleCreateAlertConfig)
	s.mux.HandleFunc("GET /alert-configs/{$}", s.handleListAlertConfigs)
	s.mux.HandleFunc("GET /alert-configs/{id}/{$}", s.handleGetAlertConfig)
	s.mux.HandleFunc("PUT /alert-configs/{id}/{$}", s.handleUpdateAlertConfig)
	s.mux.HandleFunc("DELETE /alert-configs/{id}/{$}", s.handleDeleteAlertConfig)

	s.mux.HandleFunc("GET /alerts/{$}", s.handleListAlerts)
	s.mux.HandleFunc("GET /alerts/{id}/{$}", s.handleGetAlert)
	s.mux.HandleFunc("POST /alerts/notify/{alert_id}/{$}", s.handleNotifyAlert)

	s.mux.HandleFunc("GET /temperature-logs/{$}", s.handleListTemperatureLogs)
	s.mux.HandleFunc("GET /temperature-logs/{id}/{$}", s.handleGetTemperatureLog)
}

// Handler returns the HTTP handler for this server, wrapped in the
// request ID, metrics and rate limiting middleware.
func (s *Server) Handler() http.Handler {
	return s.requestID(s.observe(s.rateLimit(s.mux)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMeta(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"api_base_url": s.cfg.APIBaseURL,
		"version":      s.cfg.Version,
	})
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// internalError logs err and answers with a generic 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", w.Header().Get(RequestIDHeader),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
}

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter. A missing
// parameter yields zero.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the caller should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gt", "gte", "lt", "lte", "max", "min":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
