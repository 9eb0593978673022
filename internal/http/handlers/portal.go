package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/patient-portal/internal/appointments"
	"github.com/wolfman30/patient-portal/internal/documents"
	httpmiddleware "github.com/wolfman30/patient-portal/internal/http/middleware"
	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/internal/portal"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// PortalHandler exposes the patient portal over JSON.
type PortalHandler struct {
	portal   *portal.Portal
	secret   string
	tokenTTL time.Duration
	logger   *logging.Logger
	now      func() time.Time
}

// NewPortalHandler creates a portal handler. Tokens are signed with secret.
func NewPortalHandler(p *portal.Portal, secret string, tokenTTL time.Duration, logger *logging.Logger) *PortalHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &PortalHandler{portal: p, secret: secret, tokenTTL: tokenTTL, logger: logger, now: time.Now}
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Session   *portal.Session `json:"session"`
}

// Login resolves credentials and returns a session token.
// POST /portal/login
func (h *PortalHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds identity.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	session, err := h.portal.ResolveIdentity(r.Context(), creds)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now()
	token, err := httpmiddleware.IssuePatientToken(h.secret, httpmiddleware.PatientClaims{
		SessionID: session.ID,
		PatientID: session.PatientID,
		Name:      session.Name,
	}, h.tokenTTL, now)
	if err != nil {
		h.logger.Error("failed to issue portal token", "error", err)
		jsonError(w, "sign-in is unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: now.Add(h.tokenTTL).UTC(), Session: session})
}

// Me returns the signed-in patient's profile.
// GET /portal/me
func (h *PortalHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.portal.Profile(r.Context(), sessionFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ListAppointments returns appointments in the requested partition.
// GET /portal/appointments?partition=upcoming|past
func (h *PortalHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	partition, err := appointments.ParsePartition(r.URL.Query().Get("partition"))
	if err != nil {
		jsonError(w, "partition must be upcoming or past", http.StatusBadRequest)
		return
	}
	appts, err := h.portal.ListAppointments(r.Context(), sessionFrom(r), partition)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if appts == nil {
		appts = []appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"partition": partition, "appointments": appts})
}

// RequestAppointment creates an appointment request.
// POST /portal/appointments
func (h *PortalHandler) RequestAppointment(w http.ResponseWriter, r *http.Request) {
	var in appointments.RequestInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	appt, err := h.portal.RequestAppointment(r.Context(), sessionFrom(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// RequestReschedule asks to move an appointment.
// POST /portal/appointments/{id}/reschedule
func (h *PortalHandler) RequestReschedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StartTime time.Time `json:"start_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	appt, err := h.portal.RequestReschedule(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), body.StartTime)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// RequestCancellation cancels or asks to cancel. Body: {"confirm": true}.
// POST /portal/appointments/{id}/cancel
func (h *PortalHandler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	var req appointments.CancellationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	appt, err := h.portal.RequestCancellation(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), req.Confirmed)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// ListDocuments returns the patient's documents, newest first.
// GET /portal/documents?type=exam&type=prescription
func (h *PortalHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var types []documents.Type
	for _, raw := range r.URL.Query()["type"] {
		if strings.TrimSpace(raw) != "" {
			types = append(types, documents.ParseType(raw))
		}
	}
	docs, err := h.portal.ListDocuments(r.Context(), sessionFrom(r), types...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []documents.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// SendChat runs one assistant turn.
// POST /portal/chat
func (h *PortalHandler) SendChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	turn, err := h.portal.SendChatTurn(r.Context(), sessionFrom(r).ID, body.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

// ChatHistory returns every turn of the session.
// GET /portal/chat/history
func (h *PortalHandler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := h.portal.ChatHistory(r.Context(), sessionFrom(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (h *PortalHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := portal.PublicMessage(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("portal request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Debug("portal request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	jsonError(w, msg, status)
}

// sessionFrom rebuilds the caller's session from verified token claims.
func sessionFrom(r *http.Request) *portal.Session {
	claims, ok := httpmiddleware.PatientClaimsFromContext(r.Context())
	if !ok {
		return &portal.Session{}
	}
	s := &portal.Session{ID: claims.SessionID, PatientID: claims.PatientID, Name: claims.Name}
	if claims.IssuedAt != nil {
		s.StartedAt = claims.IssuedAt.Time
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
