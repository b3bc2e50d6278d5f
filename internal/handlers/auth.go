package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"photovault/internal/database"
	"photovault/internal/logging"
	"photovault/internal/metrics"
)

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "photovault_session"

// CredentialsRequest carries a username and password for signup and
// login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PasswordChangeRequest is a request to change the current user's
// password.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResponse is the response from authentication endpoints.
type AuthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Username  string `json:"username,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

func validPassword(password string) (string, bool) {
	if len(password) < 6 {
		return "Password must be at least 6 characters", false
	}
	// bcrypt truncates input beyond 72 bytes
	if len(password) > 72 {
		return "Password must not exceed 72 characters", false
	}
	return "", true
}

// CheckSetupRequired reports whether any account exists yet.
func (h *Handlers) CheckSetupRequired(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{
		"needsSetup": !h.db.HasUsers(r.Context()),
	})
}

// Register creates a new local account.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Username) == "" {
		writeJSONError(w, "Username is required", http.StatusBadRequest)
		return
	}
	if msg, ok := validPassword(req.Password); !ok {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}

	user, err := h.db.CreateUser(ctx, req.Username, req.Password)
	if err != nil {
		logging.Warn("registration failed for %q: %v", req.Username, err)
		writeJSONError(w, "Username is not available", http.StatusConflict)
		return
	}

	logging.Info("account created: %s", user.Username)

	h.startSession(w, r, user)
}

// Login authenticates a local account and starts a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.db.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		logging.Warn("failed login attempt for %q", req.Username)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		writeJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	h.startSession(w, r, user)
}

func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, user *database.User) {
	session, err := h.db.CreateSession(r.Context(), user.ID)
	if err != nil {
		logging.Error("failed to create session: %v", err)
		writeJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success:   true,
		Username:  user.Username,
		ExpiresIn: int(database.SessionDuration.Seconds()),
	})
}

// Logout ends the current session and drops any remote connection the
// user still holds.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		// Drop any remote connection before the session goes away.
		if user, verr := h.db.ValidateSession(ctx, cookie.Value); verr == nil {
			if handle, found := h.handleFor(user.ID); found {
				h.remote.Clear(handle)
				h.clearHandle(user.ID)
			}
		}
		if err := h.db.DeleteSession(ctx, cookie.Value); err != nil {
			logging.Error("failed to delete session during logout: %v", err)
		}
	}

	clearSessionCookie(w)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{Success: true, Message: "Logged out"})
}

// CheckAuth verifies the current session.
func (h *Handlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.db.ValidateSession(ctx, cookie.Value)
	if err != nil {
		clearSessionCookie(w)
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success:   true,
		Username:  user.Username,
		ExpiresIn: int(database.SessionDuration.Seconds()),
	})
}

// ChangePassword updates the current user's password after verifying
// the existing one.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFrom(ctx)
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := h.db.Authenticate(ctx, user.Username, req.CurrentPassword); err != nil {
		logging.Warn("failed password change attempt for %s", user.Username)
		writeJSONError(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}
	if msg, ok := validPassword(req.NewPassword); !ok {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.db.UpdatePassword(ctx, user.Username, req.NewPassword); err != nil {
		logging.Error("failed to update password: %v", err)
		writeJSONError(w, "Failed to update password", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{Success: true, Message: "Password updated"})
}

// AuthMiddleware protects API routes that require a valid session and
// places the authenticated user in the request context.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := h.db.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			clearSessionCookie(w)
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isPublicPath(path string) bool {
	switch path {
	case "/health", "/healthz", "/livez", "/readyz", "/metrics", "/version":
		return true
	}
	return strings.HasPrefix(path, "/api/auth/")
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
