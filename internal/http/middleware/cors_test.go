package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSOrigins(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"listed", []string{"https://portal.example"}, "https://portal.example", "https://portal.example"},
		{"listed with slash", []string{"https://portal.example/"}, "https://portal.example", "https://portal.example"},
		{"unknown", []string{"https://portal.example"}, "https://evil.example", ""},
		{"any", []string{"*"}, "https://random.example", "https://random.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			req := httptest.NewRequest(http.MethodGet, "/portal/me", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(okHandler(&called)).ServeHTTP(rec, req)

			assert.True(t, called)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSHandlesPreflight(t *testing.T) {
	var called bool
	req := httptest.NewRequest(http.MethodOptions, "/portal/chat", nil)
	req.Header.Set("Origin", "https://portal.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	CORS([]string{"https://portal.example"})(okHandler(&called)).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}
