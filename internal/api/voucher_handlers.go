package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
	"github.com/hotspot-server/hotspot-server-pro/internal/portal"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
)

// HandleListVouchers lists vouchers with optional plan/status filters
func (s *RESTServer) HandleListVouchers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	var filters storage.VoucherFilters
	if v := r.URL.Query().Get("plan_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid plan_id filter")
			return
		}
		filters.PlanID = &id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.VoucherStatus(v)
		if !status.Valid() {
			s.respondError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filters.Status = &status
	}

	vouchers, total, err := s.store.ListVouchers(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"vouchers": vouchers,
		"total":    total,
	})
}

// HandleGenerateVouchers creates a batch of vouchers for a plan
func (s *RESTServer) HandleGenerateVouchers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID    int64 `json:"planId" validate:"required,gte=1"`
		Count     int   `json:"count" validate:"required,gte=1,lte=1000"`
		ValidDays int   `json:"validDays" validate:"gte=0,lte=365"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var createdBy *string
	if claims := claimsFromContext(r.Context()); claims != nil {
		createdBy = &claims.Email
	}

	vouchers, err := s.portal.GenerateVouchers(r.Context(), req.PlanID, req.Count, req.ValidDays, createdBy)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "plan not found")
		case errors.Is(err, portal.ErrPlanInactive):
			s.respondError(w, http.StatusConflict, "plan is not active")
		case errors.Is(err, storage.ErrInvalidData):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"vouchers": vouchers,
		"count":    len(vouchers),
	})
}

// HandleGetVoucher gets a voucher
func (s *RESTServer) HandleGetVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid voucher id")
		return
	}

	voucher, err := s.store.GetVoucher(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "voucher not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, voucher)
}

// HandleDisableVoucher disables an active voucher
func (s *RESTServer) HandleDisableVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid voucher id")
		return
	}

	voucher, err := s.portal.DisableVoucher(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, portal.ErrVoucherNotFound):
			s.respondError(w, http.StatusNotFound, "voucher not found")
		case errors.Is(err, portal.ErrVoucherAlreadyUsed):
			s.respondError(w, http.StatusConflict, "voucher already used")
		case errors.Is(err, portal.ErrVoucherExpired):
			s.respondError(w, http.StatusConflict, "voucher already expired")
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, voucher)
}

// HandleVoucherStats returns voucher counts by status
func (s *RESTServer) HandleVoucherStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetVoucherStats(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, stats)
}
