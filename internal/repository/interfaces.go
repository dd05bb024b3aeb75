package repository

import (
	"context"
	"time"

	"ku-polls/internal/domain"
)

// QuestionRepository defines the interface for question data operations
type QuestionRepository interface {
	// Create stores a new question
	Create(ctx context.Context, question *domain.Question) error

	// FindByID retrieves a question by ID, domain.ErrQuestionNotFound if absent
	FindByID(ctx context.Context, id string) (*domain.Question, error)

	// ListPublished returns up to limit questions with PubDate <= now, newest first
	ListPublished(ctx context.Context, now time.Time, limit int) ([]domain.Question, error)

	// Delete removes a question together with its choices and ballots
	Delete(ctx context.Context, id string) error
}

// ChoiceRepository defines the interface for choice data operations
type ChoiceRepository interface {
	// Create stores a new choice
	Create(ctx context.Context, choice *domain.Choice) error

	// FindByID retrieves a choice by ID, domain.ErrChoiceNotFound if absent
	FindByID(ctx context.Context, id string) (*domain.Choice, error)

	// ListByQuestion returns the choices of a question in creation order
	ListByQuestion(ctx context.Context, questionID string) ([]domain.Choice, error)
}

// BallotRepository defines the interface for ballot data operations
type BallotRepository interface {
	// FindByUserAndQuestion retrieves the user's ballot, domain.ErrBallotNotFound if absent
	FindByUserAndQuestion(ctx context.Context, userID, questionID string) (*domain.Ballot, error)

	// Create stores a new ballot, domain.ErrDuplicateBallot if the user already has one
	Create(ctx context.Context, ballot *domain.Ballot) error

	// Update changes the choice of an existing ballot
	Update(ctx context.Context, ballot *domain.Ballot) error

	// CountByQuestion returns the number of ballots per choice ID
	CountByQuestion(ctx context.Context, questionID string) (map[string]int, error)

	// CountByUser returns how many ballots a user has cast
	CountByUser(ctx context.Context, userID string) (int, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create stores a new user, domain.ErrUsernameTaken on a duplicate username
	Create(ctx context.Context, user *domain.User) error

	// FindByID retrieves a user by ID, domain.ErrUserNotFound if absent
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// FindByUsername retrieves a user by username, domain.ErrUserNotFound if absent
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// Update saves username, password hash and last login
	Update(ctx context.Context, user *domain.User) error
}

// Transactor runs a function inside a storage transaction. Repositories
// called with the context handed to fn take part in that transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Question   QuestionRepository
	Choice     ChoiceRepository
	Ballot     BallotRepository
	User       UserRepository
	Transactor Transactor
}
