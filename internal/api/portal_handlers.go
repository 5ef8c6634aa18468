package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
	"github.com/hotspot-server/hotspot-server-pro/internal/network"
	"github.com/hotspot-server/hotspot-server-pro/internal/portal"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
)

// HandleRedeemVoucher is the public captive portal entry point. The
// client IP is taken from the connection, only the MAC comes from the
// request body.
func (s *RESTServer) HandleRedeemVoucher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code       string `json:"code" validate:"required,min=4,max=40"`
		MACAddress string `json:"macAddress" validate:"required,mac"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.portal.Redeem(r.Context(), portal.RedeemRequest{
		Code:       req.Code,
		MACAddress: req.MACAddress,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		s.respondRedeemError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *RESTServer) respondRedeemError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portal.ErrVoucherNotFound):
		s.respondError(w, http.StatusNotFound, "voucher not found")
	case errors.Is(err, portal.ErrVoucherAlreadyUsed):
		s.respondError(w, http.StatusConflict, "voucher already used")
	case errors.Is(err, portal.ErrVoucherExpired):
		s.respondError(w, http.StatusGone, "voucher expired")
	case errors.Is(err, portal.ErrVoucherDisabled):
		s.respondError(w, http.StatusForbidden, "voucher disabled")
	case errors.Is(err, portal.ErrPlanInactive):
		s.respondError(w, http.StatusConflict, "plan no longer available")
	case errors.Is(err, network.ErrAlreadyAuthorized):
		s.respondError(w, http.StatusConflict, "device already connected")
	case errors.Is(err, network.ErrDeviceLimit):
		s.respondError(w, http.StatusConflict, "device limit reached for this voucher")
	case errors.Is(err, network.ErrBackendUnreachable):
		s.respondError(w, http.StatusServiceUnavailable, "network equipment unreachable, try again")
	case errors.Is(err, network.ErrPolicyRejected):
		s.respondError(w, http.StatusBadGateway, "network equipment rejected the request")
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// HandleGetPortalSettings returns the captive portal branding. Public,
// the portal page loads it before login.
func (s *RESTServer) HandleGetPortalSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetPortalSettings(r.Context())
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondJSON(w, http.StatusOK, &models.PortalSetting{
				BusinessName:   "WiFi Hotspot",
				WelcomeMessage: "Enter your voucher code to get online",
				PrimaryColor:   "#2563eb",
			})
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, settings)
}

// HandlePortalSessionStatus lets a connected client poll its remaining
// time and usage by MAC
func (s *RESTServer) HandlePortalSessionStatus(w http.ResponseWriter, r *http.Request) {
	mac, err := network.NormalizeMAC(chi.URLParam(r, "mac"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid MAC address")
		return
	}

	device := s.orch.Registry().Get(mac)
	if device == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"connected": false,
		})
		return
	}

	remaining := device.TimeLimit - time.Since(device.AuthorizedAt)
	if remaining < 0 {
		remaining = 0
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"connected":        true,
		"device":           device,
		"remainingSeconds": int(remaining.Seconds()),
	})
}

// clientIP strips the port from the remote address. RealIP middleware
// already rewrote it when the request came through a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
