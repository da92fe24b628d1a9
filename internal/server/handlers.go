package server

import (
	"errors"
	"net/http"

	"github.com/devid8642/weather-alert/pkg/model"
	"github.com/devid8642/weather-alert/pkg/storage"
)

const (
	msgLocationNotFound    = "Localidade não encontrada"
	msgAlertConfigNotFound = "Configuração de alerta não encontrada"
)

type locationRequest struct {
	Name      string   `json:"name" validate:"required,max=255"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	loc := &model.Location{Name: req.Name, Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := s.storage.CreateLocation(ctx, loc); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	locs, err := s.storage.ListLocations(ctx)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(locs))
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	loc, err := s.storage.GetLocation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgLocationNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	err = s.storage.DeleteLocation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgLocationNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.logger.Info("location deleted", "location_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type alertConfigRequest struct {
	Location             int64    `json:"location" validate:"required,gt=0"`
	TemperatureThreshold *float64 `json:"temperature_threshold" validate:"required"`
	CheckIntervalMinutes *int     `json:"check_interval_minutes" validate:"omitempty,gt=0"`
}

type alertConfigUpdateRequest struct {
	TemperatureThreshold *float64 `json:"temperature_threshold"`
	CheckIntervalMinutes *int     `json:"check_interval_minutes" validate:"omitempty,gt=0"`
}

func (s *Server) handleCreateAlertConfig(w http.ResponseWriter, r *http.Request) {
	var req alertConfigRequest
	if !s.decode(w, r, &req) {
		return
	}

	interval := model.DefaultCheckIntervalMinutes
	if req.CheckIntervalMinutes != nil {
		interval = *req.CheckIntervalMinutes
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	cfg, err := s.sync.Create(ctx, req.Location, *req.TemperatureThreshold, interval)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgLocationNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleListAlertConfigs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cfgs, err := s.storage.ListAlertConfigs(ctx)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cfgs))
}

// loadAlertConfig resolves the {id} path value, answering 400 or 404 itself
// when the config cannot be loaded.
func (s *Server) loadAlertConfig(w http.ResponseWriter, r *http.Request) (*model.AlertConfig, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	cfg, err := s.storage.GetAlertConfig(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgAlertConfigNotFound)
		return nil, false
	}
	if err != nil {
		s.internalError(w, r, err)
		return nil, false
	}
	return cfg, true
}

func (s *Server) handleGetAlertConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.loadAlertConfig(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateAlertConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.loadAlertConfig(w, r)
	if !ok {
		return
	}

	var req alertConfigUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	updated, err := s.sync.Update(ctx, cfg, model.AlertConfigUpdate{
		TemperatureThreshold: req.TemperatureThreshold,
		CheckIntervalMinutes: req.CheckIntervalMinutes,
	})
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgAlertConfigNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAlertConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.loadAlertConfig(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	err := s.sync.Delete(ctx, cfg)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgAlertConfigNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil makes empty listings encode as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
