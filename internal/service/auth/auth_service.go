package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ku-polls/internal/domain"
	"ku-polls/pkg/errors"
	"ku-polls/pkg/logger"
)

// Issuer is the iss claim of every session token
const Issuer = "ku-polls"

type sessionClaims struct {
	Username string `json:"username"`
	Version  int    `json:"ver"`
	jwt.RegisteredClaims
}

// UserLookup loads the account a session token belongs to
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// SessionManager issues and verifies HS256 session tokens.
// A token is only honoured while its version matches the user's
// current session version.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	users  UserLookup
	now    func() time.Time
	logger *logger.Logger
}

// NewSessionManager creates a session manager signing with secret.
// A nil users lookup skips the revocation check.
func NewSessionManager(secret string, ttl time.Duration, users UserLookup, logger *logger.Logger) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
		now:    time.Now,
		logger: logger,
	}
}

// Issue creates a signed session token for user
func (m *SessionManager) Issue(user *domain.User) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)

	claims := sessionClaims{
		Username: user.Username,
		Version:  user.SessionVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	m.logger.WithField("user_id", user.ID).Debug("Issued session token")
	return signed, expiresAt, nil
}

// Verify checks the signature, issuer and expiry of tokenString and that
// the session has not been revoked
func (m *SessionManager) Verify(ctx context.Context, tokenString string) (*domain.SessionClaims, error) {
	var claims sessionClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims,
		func(token *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		m.logger.WithError(err).Debug("Rejected session token")
		return nil, errors.NewAuthenticationError("Invalid or expired session")
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.NewAuthenticationError("Invalid or expired session")
	}

	if err := m.checkRevoked(ctx, claims.Subject, claims.Version); err != nil {
		return nil, err
	}

	result := &domain.SessionClaims{
		UserID:         claims.Subject,
		Username:       claims.Username,
		SessionVersion: claims.Version,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

func (m *SessionManager) checkRevoked(ctx context.Context, userID string, version int) error {
	if m.users == nil {
		return nil
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, domain.ErrUserNotFound) {
			m.logger.WithField("user_id", userID).Debug("Session for unknown user")
			return errors.NewAuthenticationError("Invalid or expired session")
		}
		return errors.NewInternalError("Failed to verify session", err)
	}
	if user.SessionVersion != version {
		m.logger.WithFields(map[string]interface{}{
			"user_id":       userID,
			"token_version": version,
			"user_version":  user.SessionVersion,
		}).Debug("Rejected revoked session")
		return errors.NewAuthenticationError("Invalid or expired session")
	}
	return nil
}
