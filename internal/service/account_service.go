package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ku-polls/internal/domain"
	"ku-polls/internal/repository"
	"ku-polls/internal/service/password"
	apperrors "ku-polls/pkg/errors"
	"ku-polls/pkg/logger"
)

// Form messages
const (
	MsgFieldRequired     = "This field is required."
	MsgPasswordMismatch  = "The two password fields didn’t match."
	MsgUsernameTaken     = "A user with that username already exists."
	MsgInvalidUsername   = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	MsgUsernameTooLong   = "Ensure this value has at most 150 characters."
	MsgIncorrectPassword = "Incorrect password."
	MsgOldPasswordWrong  = "Your old password was entered incorrectly. Please enter it again."
	MsgInvalidLogin      = "Please enter a correct username and password. Note that both fields may be case-sensitive."
	MsgAccountLocked     = "Account locked: too many login attempts"
)

const maxUsernameLength = 150

type AccountService struct {
	users      repository.UserRepository
	ballots    repository.BallotRepository
	validator  PasswordValidator
	limiter    *LoginLimiter
	observers  []AuthObserver
	logger     *logger.Logger
	bcryptCost int
	now        func() time.Time
}

func NewAccountService(
	users repository.UserRepository,
	ballots repository.BallotRepository,
	validator PasswordValidator,
	limiter *LoginLimiter,
	logger *logger.Logger,
) *AccountService {
	return &AccountService{
		users:      users,
		ballots:    ballots,
		validator:  validator,
		limiter:    limiter,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// RegisterObserver adds an observer for login, logout and failed login events
func (s *AccountService) RegisterObserver(o AuthObserver) {
	s.observers = append(s.observers, o)
}

// PasswordHelpText describes the password requirements
func (s *AccountService) PasswordHelpText() string {
	return s.validator.HelpText()
}

// Signup creates an account. No user is stored unless every check passes.
func (s *AccountService) Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error) {
	if err := requireFields(
		"username", req.Username,
		"password1", req.Password1,
		"password2", req.Password2,
	); err != nil {
		return nil, err
	}

	if err := validateUsername(req.Username); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByUsername(ctx, req.Username); err == nil {
		return nil, usernameTaken()
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperrors.NewInternalError("Failed to create account", err)
	}

	if req.Password1 != req.Password2 {
		return nil, fieldError("password2", MsgPasswordMismatch)
	}
	if err := s.checkPassword(ctx, "password2", req.Password2); err != nil {
		return nil, err
	}

	hash, err := s.hash(req.Password1)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		DateJoined:   s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, usernameTaken()
		}
		return nil, apperrors.NewInternalError("Failed to create account", err)
	}

	s.logger.WithField("user_id", user.ID).Info("Account created")
	return user, nil
}

// Authenticate checks credentials for a login from ipAddress. A locked
// out (username, ip) pair is refused even with the right password.
func (s *AccountService) Authenticate(ctx context.Context, username, pw, ipAddress string) (*domain.User, error) {
	if err := requireFields("username", username, "password", pw); err != nil {
		return nil, err
	}

	if locked, retryAfter := s.limiter.IsLocked(ctx, username, ipAddress); locked {
		s.notifyLoginFailed(ctx, username, ipAddress)
		return nil, apperrors.NewLockedError(MsgAccountLocked).
			WithDetail("retry_after_seconds", int(retryAfter.Seconds())).
			WithInternal(domain.ErrAccountLocked)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperrors.NewInternalError("Failed to log in", err)
	}
	if err != nil || !checkPassword(user.PasswordHash, pw) {
		s.limiter.RecordFailure(ctx, username, ipAddress)
		s.notifyLoginFailed(ctx, username, ipAddress)
		return nil, apperrors.NewAuthenticationError(MsgInvalidLogin).WithInternal(domain.ErrInvalidCredentials)
	}

	s.limiter.Reset(ctx, username, ipAddress)

	loginAt := s.now()
	user.LastLogin = &loginAt
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.WithError(err).Warn("Failed to record last login")
	}

	for _, o := range s.observers {
		o.OnLogin(ctx, user, ipAddress)
	}
	return user, nil
}

// Logout revokes every session of userID and notifies observers
func (s *AccountService) Logout(ctx context.Context, userID, ipAddress string) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	user.SessionVersion++
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewInternalError("Failed to end session", err)
	}
	for _, o := range s.observers {
		o.OnLogout(ctx, user, ipAddress)
	}
	return nil
}

// ChangeUsername renames the account after confirming the current password
func (s *AccountService) ChangeUsername(ctx context.Context, userID, newUsername, pw string) (*domain.User, error) {
	if err := requireFields("new_username", newUsername, "password", pw); err != nil {
		return nil, err
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := validateUsername(newUsername); err != nil {
		err.Details["field"] = "new_username"
		return nil, err
	}
	if !checkPassword(user.PasswordHash, pw) {
		s.logger.WithField("user_id", user.ID).Warn("Incorrect password on username change")
		return nil, fieldError("password", MsgIncorrectPassword)
	}

	oldUsername := user.Username
	user.Username = newUsername
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, usernameTaken()
		}
		return nil, apperrors.NewInternalError("Failed to change username", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":      user.ID,
		"old_username": oldUsername,
		"new_username": newUsername,
	}).Info("Username changed")
	return user, nil
}

// ChangePassword replaces the password after confirming the old one.
// Sessions issued before the change stop verifying.
func (s *AccountService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword1, newPassword2 string) (*domain.User, error) {
	if err := requireFields(
		"old_password", oldPassword,
		"new_password1", newPassword1,
		"new_password2", newPassword2,
	); err != nil {
		return nil, err
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !checkPassword(user.PasswordHash, oldPassword) {
		return nil, fieldError("old_password", MsgOldPasswordWrong)
	}
	if newPassword1 != newPassword2 {
		return nil, fieldError("new_password2", MsgPasswordMismatch)
	}
	if err := s.checkPassword(ctx, "new_password2", newPassword2); err != nil {
		return nil, err
	}

	hash, err := s.hash(newPassword1)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.SessionVersion++
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternalError("Failed to change password", err)
	}

	s.logger.WithField("user_id", user.ID).Info("Password changed")
	return user, nil
}

// GetProfile returns what the account management page shows
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cast, err := s.ballots.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to load profile", err)
	}

	return &domain.Profile{
		Username:    user.Username,
		DateJoined:  user.DateJoined,
		LastLogin:   user.LastLogin,
		BallotsCast: cast,
	}, nil
}

func (s *AccountService) findUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperrors.NewAuthenticationError("Session user no longer exists").WithInternal(err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to load user", err)
	}
	return user, nil
}

// checkPassword runs the password policy and maps a rejection to field
func (s *AccountService) checkPassword(ctx context.Context, field, pw string) error {
	err := s.validator.Validate(ctx, pw)
	if err == nil {
		return nil
	}
	if vErr, ok := password.AsValidationError(err); ok {
		return fieldError(field, vErr.Message).WithDetail("reason", vErr.Reason)
	}
	return apperrors.NewInternalError("Failed to validate password", err)
}

func (s *AccountService) hash(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperrors.NewValidationError("Password is too long.", nil)
	}
	if err != nil {
		return "", apperrors.NewInternalError("Failed to hash password", err)
	}
	return string(hash), nil
}

func (s *AccountService) notifyLoginFailed(ctx context.Context, username, ipAddress string) {
	for _, o := range s.observers {
		o.OnLoginFailed(ctx, username, ipAddress)
	}
}

func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func validateUsername(username string) *apperrors.AppError {
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return fieldError("username", MsgUsernameTooLong)
	}
	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return fieldError("username", MsgInvalidUsername)
	}
	return nil
}

// requireFields takes (name, value) pairs and reports the first blank one
func requireFields(pairs ...string) *apperrors.AppError {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fieldError(pairs[i], MsgFieldRequired)
		}
	}
	return nil
}

func fieldError(field, message string) *apperrors.AppError {
	return apperrors.NewValidationError(message, map[string]interface{}{"field": field})
}

func usernameTaken() *apperrors.AppError {
	return apperrors.NewConflictError(MsgUsernameTaken).
		WithDetail("field", "username").
		WithInternal(domain.ErrUsernameTaken)
}
