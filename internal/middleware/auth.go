package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"ku-polls/internal/domain"
	"ku-polls/pkg/errors"
	"ku-polls/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// UserContextKey is the key for the session claims in context
	UserContextKey ContextKey = "user"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// SessionCookieName is the cookie carrying the session token
const SessionCookieName = "session"

// SessionVerifier validates session tokens
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*domain.SessionClaims, error)
}

// RequireAuth rejects requests without a valid session
func RequireAuth(verifier SessionVerifier, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, appErr := extractToken(r)
			if appErr != nil {
				writeErrorResponse(w, r, appErr, logger)
				return
			}
			if token == "" {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Authentication required"), logger)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				appErr, ok := errors.As(err)
				if !ok {
					appErr = errors.NewAuthenticationError("Invalid or expired session")
				}
				writeErrorResponse(w, r, appErr, logger)
				return
			}

			logger.WithField("user_id", claims.UserID).Debug("User authenticated successfully")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, claims)))
		})
	}
}

// OptionalAuth attaches the session user when a valid token is present.
// A missing or stale token leaves the request anonymous.
func OptionalAuth(verifier SessionVerifier, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("Ignoring invalid session on optional route")
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, claims)))
		})
	}
}

// UserFromContext returns the session claims of an authenticated request
func UserFromContext(ctx context.Context) (*domain.SessionClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*domain.SessionClaims)
	return claims, ok && claims != nil
}

// extractToken reads the bearer token, falling back to the session cookie
func extractToken(r *http.Request) (string, *errors.AppError) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", errors.NewAuthenticationError("Invalid authorization header format")
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return "", errors.NewAuthenticationError("Token is required")
		}
		return token, nil
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value, nil
	}
	return "", nil
}

// RequestID creates a middleware that adds a unique request ID to each request
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 64 {
				requestID = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request ID stored by RequestID
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, logger *logger.Logger) {
	requestID := GetRequestID(r.Context())
	logger.WithError(appErr).WithField("request_id", requestID).Info("Request rejected")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(errors.NewErrorResponse(appErr, requestID))
}
