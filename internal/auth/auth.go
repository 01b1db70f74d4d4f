package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Anonymous is the user id assigned when no identity is supplied.
const Anonymous = "anonymous"

// ErrInvalidCredentials is returned when a client key does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

type contextKey string

const userContextKey contextKey = "auth/user"

// SessionManager signs and validates lightweight bearer tokens.
type SessionManager struct {
	Secret   []byte
	Duration time.Duration
	now      func() time.Time
}

// Claims captures decoded token data.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// Middleware resolves the requesting user.
type Middleware struct {
	Sessions SessionManager
}

// Handler exchanges a client key for a bearer token.
type Handler struct {
	Sessions      SessionManager
	ClientKeyHash string
}

type tokenRequest struct {
	ClientKey string `json:"client_key"`
	UserID    string `json:"user_id"`
}

// Enabled reports whether tokens are required.
func (sm SessionManager) Enabled() bool {
	return len(sm.Secret) > 0
}

// Identify stores the user id in the request context. With a secret
// configured a valid bearer token is required; without one the X-User-ID
// header is trusted.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Sessions.Enabled() {
			userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
			if userID == "" {
				userID = Anonymous
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
			return
		}

		token := bearerToken(r)
		if token == "" {
			// EventSource and WebSocket clients cannot set headers.
			token = r.URL.Query().Get("access_token")
		}
		claims, err := m.Sessions.Parse(token)
		if err != nil || !claims.ExpiresAt.After(m.Sessions.clock()()) {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID)))
	})
}

// Token handles POST /api/auth/token.
func (h Handler) Token(w http.ResponseWriter, r *http.Request) {
	if !h.Sessions.Enabled() || h.ClientKeyHash == "" {
		http.Error(w, "token issuing is not configured", http.StatusServiceUnavailable)
		return
	}

	var payload tokenRequest
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	userID := strings.TrimSpace(payload.UserID)
	if userID == "" || payload.ClientKey == "" || strings.ContainsAny(userID, "|.") {
		http.Error(w, "client_key and user_id are required", http.StatusBadRequest)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.ClientKeyHash), []byte(payload.ClientKey)); err != nil {
		http.Error(w, ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}

	token, expires, err := h.Sessions.Issue(userID)
	if err != nil {
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = jsonResponse(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expires,
		"user_id":      userID,
	})
}

// Parse validates a token and returns its claims.
func (sm SessionManager) Parse(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Claims{}, errors.New("invalid token format")
	}
	payload := parts[0]
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("decode signature: %w", err)
	}

	mac := hmac.New(sha256.New, sm.Secret)
	mac.Write([]byte(payload))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Claims{}, errors.New("signature mismatch")
	}

	payloadParts := strings.Split(payload, "|")
	if len(payloadParts) != 2 {
		return Claims{}, errors.New("invalid payload")
	}
	expUnix, err := strconv.ParseInt(payloadParts[1], 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("parse expiry: %w", err)
	}
	return Claims{UserID: payloadParts[0], ExpiresAt: time.Unix(expUnix, 0)}, nil
}

// Issue builds a signed token for the given user.
func (sm SessionManager) Issue(userID string) (string, time.Time, error) {
	if !sm.Enabled() {
		return "", time.Time{}, errors.New("session secret missing")
	}
	expires := sm.clock()().Add(sm.sessionDuration())
	payload := fmt.Sprintf("%s|%d", userID, expires.Unix())
	mac := hmac.New(sha256.New, sm.Secret)
	mac.Write([]byte(payload))
	token := payload + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return token, expires, nil
}

// WithUser stores the user id in context.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// UserID returns the user id from context, or Anonymous.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userContextKey).(string); ok && id != "" {
		return id
	}
	return Anonymous
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (sm SessionManager) clock() func() time.Time {
	if sm.now != nil {
		return sm.now
	}
	return time.Now
}

func (sm SessionManager) sessionDuration() time.Duration {
	if sm.Duration <= 0 {
		return 7 * 24 * time.Hour
	}
	return sm.Duration
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func jsonResponse(w http.ResponseWriter, status int, payload any) error {
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}
