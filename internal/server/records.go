package server

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/devid8642/weather-alert/pkg/alerts"
	"github.com/devid8642/weather-alert/pkg/model"
	"github.com/devid8642/weather-alert/pkg/storage"
)

const (
	msgAlertNotFound          = "Alerta não encontrado"
	msgTemperatureLogNotFound = "Registro de temperatura não encontrado"
	msgAlertNotified          = "Alerta marcado como notificado com sucesso"
)

func listFilter(w http.ResponseWriter, r *http.Request) (model.ListFilter, bool) {
	id, err := queryID(r, "location_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return model.ListFilter{}, false
	}
	return model.ListFilter{LocationID: id}, true
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	filter, ok := listFilter(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	list, err := s.storage.ListAlerts(ctx, filter)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	alert, err := s.storage.GetAlert(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgAlertNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// handleNotifyAlert is called back by the webhook receiver once an alert
// has been delivered. A signed callback must also carry a valid body
// signature.
func (s *Server) handleNotifyAlert(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) || !s.signatureValid(w, r) {
		s.logger.Warn("unauthorized notify callback", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := pathID(r, "alert_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	err = s.alerts.MarkNotified(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgAlertNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, errorResponse{Message: msgAlertNotified})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.WebhookSecret == "" {
		return false
	}
	got := r.Header.Get(alerts.KeyHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.WebhookSecret)) == 1
}

// signatureValid accepts unsigned callbacks and checks the HMAC of signed ones.
func (s *Server) signatureValid(w http.ResponseWriter, r *http.Request) bool {
	sig := r.Header.Get(alerts.SignatureHeader)
	if sig == "" {
		return true
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize))
	if err != nil {
		return false
	}
	return alerts.VerifySignature(body, sig, s.cfg.WebhookSecret)
}

func (s *Server) handleListTemperatureLogs(w http.ResponseWriter, r *http.Request) {
	filter, ok := listFilter(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	logs, err := s.storage.ListTemperatureLogs(ctx, filter)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(logs))
}

func (s *Server) handleGetTemperatureLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	entry, err := s.storage.GetTemperatureLog(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgTemperatureLogNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
