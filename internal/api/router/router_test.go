package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/patient-portal/internal/appointments"
	"github.com/wolfman30/patient-portal/internal/audit"
	"github.com/wolfman30/patient-portal/internal/conversation"
	"github.com/wolfman30/patient-portal/internal/documents"
	"github.com/wolfman30/patient-portal/internal/http/handlers"
	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/internal/portal"
	"github.com/wolfman30/patient-portal/internal/webchat"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

const secret = "router-test-secret"

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestRouter(t *testing.T, checks map[string]Pinger) http.Handler {
	t.Helper()

	logger := logging.Default()
	patients := identity.NewMemoryStore()
	patients.Add(identity.Patient{Name: "Joao Lima", NationalID: "98765432100"})

	chat := conversation.NewController(
		conversation.NewMemorySessionStore(),
		conversation.NewContextBuilder(conversation.PromptConfig{ClinicName: "Clinica Vida"}),
		conversation.NewGateway(nil, conversation.GatewayConfig{}),
		audit.NewLogger(audit.NewMemoryStore(), logger),
		conversation.ControllerConfig{ClinicName: "Clinica Vida"},
		logger,
	)
	p := portal.New(portal.Deps{
		Resolver:     identity.NewResolver(patients, logger),
		Appointments: appointments.NewService(appointments.NewMemoryRepository(), logger),
		Documents:    documents.NewService(documents.NewMemoryRepository(), nil),
		Chat:         chat,
		Logger:       logger,
	})

	return New(&Config{
		Logger:             logger,
		Portal:             handlers.NewPortalHandler(p, secret, time.Hour, logger),
		WebChat:            webchat.NewHandler(p, portal.PublicMessage, logger),
		JWTSecret:          secret,
		CORSAllowedOrigins: []string{"https://portal.example.com"},
		RateLimitRPS:       50,
		RateLimitBurst:     50,
		ReadinessChecks:    checks,
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterReadinessReportsFailingDependency(t *testing.T) {
	router := newTestRouter(t, map[string]Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["redis"] != "unavailable" || resp["postgres"] != "ok" {
		t.Errorf("unexpected readiness body: %v", resp)
	}
}

func TestRouterPortalRequiresToken(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, path := range []string{"/portal/me", "/portal/appointments", "/portal/documents", "/portal/chat/history"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rr.Code)
		}
	}
}

func TestRouterLoginThenListAppointments(t *testing.T) {
	router := newTestRouter(t, nil)

	body, _ := json.Marshal(map[string]string{"national_id": "987.654.321-00"})
	req := httptest.NewRequest(http.MethodPost, "/portal/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&login); err != nil || login.Token == "" {
		t.Fatalf("login response missing token: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/portal/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("appointments: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/portal/appointments?token="+login.Token, nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("query token outside the websocket: expected 401, got %d", rr.Code)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/portal/login", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.com" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}
