package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const patientClaimsKey contextKey = "patientClaims"

const tokenIssuer = "patient-portal"

// PatientClaims ties a bearer token to one portal session.
type PatientClaims struct {
	SessionID string `json:"sid"`
	PatientID string `json:"pid"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssuePatientToken signs claims with HS256, valid for ttl.
func IssuePatientToken(secret string, claims PatientClaims, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("middleware: portal jwt secret not configured")
	}
	claims.Issuer = tokenIssuer
	claims.Subject = claims.PatientID
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParsePatientToken validates an HMAC-signed patient token.
func ParsePatientToken(secret, tokenString string) (*PatientClaims, error) {
	claims := &PatientClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.SessionID == "" || claims.PatientID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// PatientJWT requires a valid patient token in the Authorization header.
func PatientJWT(secret string) func(http.Handler) http.Handler {
	return patientJWT(secret, false)
}

// PatientWebSocketJWT also accepts the token as the "token" query parameter,
// since browsers cannot set headers on a websocket upgrade. Mount it on the
// upgrade route only.
func PatientWebSocketJWT(secret string) func(http.Handler) http.Handler {
	return patientJWT(secret, true)
}

func patientJWT(secret string, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "portal auth disabled", http.StatusUnauthorized)
				return
			}
			tokenString := bearerToken(r, allowQuery)
			if tokenString == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := ParsePatientToken(secret, tokenString)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), patientClaimsKey, *claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request, allowQuery bool) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if !allowQuery {
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// PatientClaimsFromContext returns patient claims if present.
func PatientClaimsFromContext(ctx context.Context) (PatientClaims, bool) {
	claims, ok := ctx.Value(patientClaimsKey).(PatientClaims)
	return claims, ok
}
