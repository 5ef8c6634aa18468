package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Captive portal routes (public, hit by unauthenticated clients)
	r.Route("/portal", func(r chi.Router) {
		r.Post("/redeem", s.HandleRedeemVoucher)
		r.Get("/settings", s.HandleGetPortalSettings)
		r.Get("/session/{mac}", s.HandlePortalSessionStatus)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleCreateUser)
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Put("/", s.HandleUpdateUser)
			})
		})

		// Dashboard
		r.Get("/dashboard/stats", s.HandleDashboardStats)

		// Plans
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", s.HandleListPlans)
			r.Post("/", s.HandleCreatePlan)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetPlan)
				r.Put("/", s.HandleUpdatePlan)
				r.Delete("/", s.HandleDeactivatePlan)
			})
		})

		// Vouchers
		r.Route("/vouchers", func(r chi.Router) {
			r.Get("/", s.HandleListVouchers)
			r.Post("/generate", s.HandleGenerateVouchers)
			r.Get("/stats", s.HandleVoucherStats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetVoucher)
				r.Post("/disable", s.HandleDisableVoucher)
			})
		})

		// Sessions
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/active", s.HandleListActiveSessions)
			r.Get("/stats", s.HandleSessionStats)
			r.Post("/{id}/disconnect", s.HandleDisconnectSession)
		})

		// Network devices
		r.Route("/network", func(r chi.Router) {
			r.Get("/devices", s.HandleListNetworkDevices)
			r.Get("/status", s.HandleNetworkStatus)
		})

		// Settings
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.HandleListSettings)
			r.Put("/{key}", s.HandleUpdateSetting)
			r.Get("/portal", s.HandleGetPortalSettings)
			r.Put("/portal", s.HandleUpdatePortalSettings)
		})

		// Analytics
		r.Get("/analytics", s.HandleListAnalytics)

		// Events
		r.Get("/events", s.HandleListEvents)
	})
}
