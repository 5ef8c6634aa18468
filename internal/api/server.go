package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/hotspot-server/hotspot-server-pro/internal/auth"
	"github.com/hotspot-server/hotspot-server-pro/internal/config"
	"github.com/hotspot-server/hotspot-server-pro/internal/network"
	"github.com/hotspot-server/hotspot-server-pro/internal/portal"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
	"github.com/hotspot-server/hotspot-server-pro/internal/validation"
)

type contextKey string

const claimsKey contextKey = "claims"

// RESTServer represents the REST API server
type RESTServer struct {
	config    *config.Config
	store     storage.Store
	auth      *auth.JWTManager
	validator *validation.Validator
	portal    *portal.Service
	orch      *network.Orchestrator
	hub       *Hub
	router    chi.Router
	server    *http.Server
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, store storage.Store, portalSvc *portal.Service, orch *network.Orchestrator, hub *Hub) *RESTServer {
	s := &RESTServer{
		config:    cfg,
		store:     store,
		auth:      auth.NewJWTManager(&cfg.JWT),
		validator: validation.NewValidator(),
		portal:    portalSvc,
		orch:      orch,
		hub:       hub,
		router:    chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	allowed := s.config.API.CORSAllow
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Dashboard live event stream
	s.router.Get("/ws", s.hub.HandleWS)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr

	// Serve the dashboard and captive portal pages next to the API
	webDir := s.config.API.StaticDir
	if envWebDir := os.Getenv("WEB_DIR"); envWebDir != "" {
		webDir = envWebDir
	}

	if webDir == "" {
		log.Info().Msg("No static dir configured, serving API only")
	} else if _, err := os.Stat(webDir); os.IsNotExist(err) {
		log.Warn().Str("dir", webDir).Msg("Web directory not found, dashboard will not be available")
	} else {
		log.Info().Str("dir", webDir).Msg("Serving web UI from directory")

		s.server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
				s.router.ServeHTTP(w, r)
				return
			}

			fs := http.FileServer(http.Dir(webDir))

			// SPA routes fall back to index.html
			if r.URL.Path == "/" || (!strings.Contains(r.URL.Path, ".") && r.URL.Path != "/") {
				http.ServeFile(w, r, filepath.Join(webDir, "index.html"))
				return
			}

			fs.ServeHTTP(w, r)
		})
	}

	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware is the authentication middleware
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFromContext returns the authenticated claims, or nil
func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}
