package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/patient-portal/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/patient-portal/internal/http/middleware"
	"github.com/wolfman30/patient-portal/internal/webchat"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Portal             *handlers.PortalHandler
	WebChat            *webchat.Handler
	JWTSecret          string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Requests per second and burst allowed per client IP. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// Readiness checks keyed by dependency name (optional)
	ReadinessChecks map[string]Pinger
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", health)
	r.Get("/ready", readiness(cfg.ReadinessChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Portal == nil {
		return r
	}

	r.Route("/portal", func(pr chi.Router) {
		if cfg.RateLimitRPS > 0 {
			pr.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		pr.Post("/login", cfg.Portal.Login)

		pr.Group(func(authed chi.Router) {
			authed.Use(httpmiddleware.PatientJWT(cfg.JWTSecret))
			authed.Use(middleware.Compress(5))
			authed.Get("/me", cfg.Portal.Me)
			authed.Get("/appointments", cfg.Portal.ListAppointments)
			authed.Post("/appointments", cfg.Portal.RequestAppointment)
			authed.Post("/appointments/{id}/reschedule", cfg.Portal.RequestReschedule)
			authed.Post("/appointments/{id}/cancel", cfg.Portal.RequestCancellation)
			authed.Get("/documents", cfg.Portal.ListDocuments)
			authed.Post("/chat", cfg.Portal.SendChat)
			authed.Get("/chat/history", cfg.Portal.ChatHistory)
		})

		if cfg.WebChat != nil {
			pr.With(httpmiddleware.PatientWebSocketJWT(cfg.JWTSecret)).Get("/chat/ws", cfg.WebChat.HandleWebSocket)
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readiness(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{"status": "ok"}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[name] = "unavailable"
				continue
			}
			result[name] = "ok"
		}
		writeStatus(w, status, result)
	}
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
