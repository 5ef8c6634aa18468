package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
)

// HandleListPlans lists plans
func (s *RESTServer) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	plans, err := s.store.ListPlans(r.Context(), activeOnly)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
		"total": len(plans),
	})
}

type planRequest struct {
	Name               string `json:"name" validate:"required,min=2,max=100"`
	Description        string `json:"description" validate:"max=500"`
	DurationMinutes    int    `json:"durationMinutes" validate:"required,gte=1"`
	DataLimitMB        *int64 `json:"dataLimitMb,omitempty"`
	SpeedLimitDownMbps int    `json:"speedLimitDownMbps" validate:"gte=0"`
	SpeedLimitUpMbps   int    `json:"speedLimitUpMbps" validate:"gte=0"`
	MaxDevices         int    `json:"maxDevices" validate:"gte=1,lte=50"`
	Price              string `json:"price"`
}

// HandleCreatePlan creates a plan
func (s *RESTServer) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.MaxDevices == 0 {
		req.MaxDevices = 1
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.DataLimitMB != nil && *req.DataLimitMB <= 0 {
		s.respondError(w, http.StatusBadRequest, "dataLimitMb must be positive or omitted")
		return
	}

	plan := &models.Plan{
		Name:               req.Name,
		Description:        req.Description,
		DurationMinutes:    req.DurationMinutes,
		DataLimitMB:        req.DataLimitMB,
		SpeedLimitDownMbps: req.SpeedLimitDownMbps,
		SpeedLimitUpMbps:   req.SpeedLimitUpMbps,
		MaxDevices:         req.MaxDevices,
		Price:              req.Price,
		IsActive:           true,
	}

	if err := s.store.CreatePlan(r.Context(), plan); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "plan with this name already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, plan)
}

// HandleGetPlan gets a plan
func (s *RESTServer) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	plan, err := s.store.GetPlan(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "plan not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, plan)
}

// HandleUpdatePlan updates a plan
func (s *RESTServer) HandleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	var req planRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := s.store.GetPlan(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "plan not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	plan.Name = req.Name
	plan.Description = req.Description
	plan.DurationMinutes = req.DurationMinutes
	plan.DataLimitMB = req.DataLimitMB
	plan.SpeedLimitDownMbps = req.SpeedLimitDownMbps
	plan.SpeedLimitUpMbps = req.SpeedLimitUpMbps
	plan.MaxDevices = req.MaxDevices
	plan.Price = req.Price

	if err := s.store.UpdatePlan(ctx, plan); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, plan)
}

// HandleDeactivatePlan retires a plan. Existing vouchers keep the row
// for history but new redemptions against it are rejected.
func (s *RESTServer) HandleDeactivatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	if err := s.store.DeactivatePlan(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "plan not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
