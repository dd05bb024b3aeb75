package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ku-polls/internal/domain"
	"ku-polls/internal/middleware"
	"ku-polls/internal/service"
	apperrors "ku-polls/pkg/errors"
	"ku-polls/pkg/logger"
)

// SessionIssuer signs session tokens for authenticated users
type SessionIssuer interface {
	Issue(user *domain.User) (string, time.Time, error)
}

// AccountHandler serves signup, login and account self-service
type AccountHandler struct {
	accounts      service.AccountManager
	sessions      SessionIssuer
	secureCookies bool
	logger        *logger.Logger
}

func NewAccountHandler(accounts service.AccountManager, sessions SessionIssuer, secureCookies bool, logger *logger.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:      accounts,
		sessions:      sessions,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// Routes mounts the account endpoints
func (h *AccountHandler) Routes(verifier middleware.SessionVerifier) chi.Router {
	r := chi.NewRouter()
	r.Get("/password-policy", h.PasswordPolicy)
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(verifier, h.logger))
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Post("/username", h.ChangeUsername)
		r.Post("/password", h.ChangePassword)
	})
	return r
}

// PasswordPolicy handles GET /api/accounts/password-policy
func (h *AccountHandler) PasswordPolicy(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"help_text": h.accounts.PasswordHelpText(),
	})
}

// Signup handles POST /api/accounts/signup. The new user is logged in.
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	user, err := h.accounts.Signup(r.Context(), req)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	h.startSession(w, r, http.StatusCreated, user)
}

// Login handles POST /api/accounts/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	h.startSession(w, r, http.StatusOK, user)
}

// Logout handles POST /api/accounts/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.UserFromContext(r.Context())
	if err := h.accounts.Logout(r.Context(), claims.UserID, clientIP(r)); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, messageResponse{Success: true, Message: "You have been logged out."})
}

// Me handles GET /api/accounts/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.UserFromContext(r.Context())
	profile, err := h.accounts.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// ChangeUsername handles POST /api/accounts/username. The session is
// reissued so it carries the new name.
func (h *AccountHandler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangeUsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	claims, _ := middleware.UserFromContext(r.Context())
	user, err := h.accounts.ChangeUsername(r.Context(), claims.UserID, req.NewUsername, req.Password)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	h.startSession(w, r, http.StatusOK, user)
}

// ChangePassword handles POST /api/accounts/password
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	claims, _ := middleware.UserFromContext(r.Context())
	user, err := h.accounts.ChangePassword(r.Context(), claims.UserID, req.OldPassword, req.NewPassword1, req.NewPassword2)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	h.startSession(w, r, http.StatusOK, user)
}

func (h *AccountHandler) startSession(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	token, expiresAt, err := h.sessions.Issue(user)
	if err != nil {
		respondError(w, r, apperrors.NewInternalError("Failed to start session", err), h.logger)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, status, map[string]interface{}{
		"success": true,
		"session": domain.Session{Token: token, ExpiresAt: expiresAt, User: user},
	})
}
