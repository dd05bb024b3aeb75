package service

import (
	"context"
	"time"

	"ku-polls/internal/domain"
)

// PasswordValidator checks a candidate password against the password policy
type PasswordValidator interface {
	// Validate returns nil when the password is acceptable
	Validate(ctx context.Context, password string) error

	// HelpText describes the password requirements
	HelpText() string
}

// PollService defines the poll operations used by the HTTP layer
type PollService interface {
	// ListLatest returns the newest published questions
	ListLatest(ctx context.Context, now time.Time) ([]domain.QuestionSummary, error)

	// GetDetail returns a published question with its choices and the user's selection
	GetDetail(ctx context.Context, questionID, userID string, now time.Time) (*domain.QuestionDetail, error)

	// GetResults returns the vote tally of a published question
	GetResults(ctx context.Context, questionID string, now time.Time) (*domain.QuestionResults, error)

	// Vote checks eligibility and records the user's ballot
	Vote(ctx context.Context, userID, questionID, choiceID string, now time.Time) (*domain.VoteResult, error)
}

// AccountManager defines the account self-service operations used by the HTTP layer
type AccountManager interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error)
	Authenticate(ctx context.Context, username, password, ipAddress string) (*domain.User, error)
	Logout(ctx context.Context, userID, ipAddress string) error
	ChangeUsername(ctx context.Context, userID, newUsername, password string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword1, newPassword2 string) (*domain.User, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	PasswordHelpText() string
}

// Services aggregates all service interfaces
type Services struct {
	Polls    PollService
	Accounts AccountManager
}
