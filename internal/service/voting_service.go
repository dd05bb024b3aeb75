package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ku-polls/internal/domain"
	"ku-polls/internal/event"
	"ku-polls/internal/metrics"
	"ku-polls/internal/repository"
)

const publishTimeout = 5 * time.Second

// VotingService serves the poll pages and records ballots. Tallies are
// read through the results cache and each committed ballot is published
// as an event.
type VotingService struct {
	repos        *repository.Repositories
	cacheService *CacheService
	publisher    event.BallotPublisher
	metrics      *metrics.Metrics
	logger       *zap.Logger
	indexLimit   int
	now          func() time.Time
}

// NewVotingService creates a VotingService. A nil publisher drops ballot
// events and indexLimit caps how many questions ListLatest returns.
func NewVotingService(
	repos *repository.Repositories,
	cacheService *CacheService,
	publisher event.BallotPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
	indexLimit int,
) *VotingService {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return &VotingService{
		repos:        repos,
		cacheService: cacheService,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
		indexLimit:   indexLimit,
		now:          time.Now,
	}
}

// ListLatest returns up to indexLimit published questions, newest first
func (s *VotingService) ListLatest(ctx context.Context, now time.Time) ([]domain.QuestionSummary, error) {
	questions, err := s.repos.Question.ListPublished(ctx, now, s.indexLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	summaries := make([]domain.QuestionSummary, 0, len(questions))
	for _, q := range questions {
		summaries = append(summaries, domain.NewQuestionSummary(q, now))
	}
	return summaries, nil
}

// GetDetail returns a published question with its choices. When userID is
// set the user's current selection is included.
func (s *VotingService) GetDetail(ctx context.Context, questionID, userID string, now time.Time) (*domain.QuestionDetail, error) {
	q, err := s.publishedQuestion(ctx, questionID, now)
	if err != nil {
		return nil, err
	}

	choices, err := s.repos.Choice.ListByQuestion(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load choices: %w", err)
	}

	detail := &domain.QuestionDetail{
		QuestionSummary: domain.NewQuestionSummary(*q, now),
		Choices:         choices,
	}

	if userID != "" {
		ballot, err := s.repos.Ballot.FindByUserAndQuestion(ctx, userID, q.ID)
		switch {
		case err == nil:
			detail.SelectedChoice = ballot.ChoiceID
		case !errors.Is(err, domain.ErrBallotNotFound):
			return nil, fmt.Errorf("failed to load ballot: %w", err)
		}
	}

	return detail, nil
}

// GetResults returns the tally of a published question. Counts are derived
// from stored ballots.
func (s *VotingService) GetResults(ctx context.Context, questionID string, now time.Time) (*domain.QuestionResults, error) {
	results, err := s.cacheService.GetResultsWithCache(ctx, questionID, func(ctx context.Context) (*domain.QuestionResults, error) {
		return s.tally(ctx, questionID)
	})
	if err != nil {
		return nil, err
	}

	if !results.Question.IsPublished(now) {
		return nil, domain.ErrQuestionNotFound
	}
	results.CanVote = results.Question.CanVote(now)
	return results, nil
}

func (s *VotingService) tally(ctx context.Context, questionID string) (*domain.QuestionResults, error) {
	q, err := s.repos.Question.FindByID(ctx, questionID)
	if err != nil {
		return nil, err
	}

	choices, err := s.repos.Choice.ListByQuestion(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load choices: %w", err)
	}

	counts, err := s.repos.Ballot.CountByQuestion(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count ballots: %w", err)
	}

	results := &domain.QuestionResults{
		Question:   *q,
		Choices:    make([]domain.ChoiceTally, 0, len(choices)),
		LastUpdate: s.now(),
	}
	for _, c := range choices {
		votes := counts[c.ID]
		results.Choices = append(results.Choices, domain.ChoiceTally{Choice: c, Votes: votes})
		results.TotalVotes += votes
	}
	return results, nil
}

// Vote records userID's ballot for choiceID after checking that the
// question is open and the choice belongs to it
func (s *VotingService) Vote(ctx context.Context, userID, questionID, choiceID string, now time.Time) (*domain.VoteResult, error) {
	q, err := s.publishedQuestion(ctx, questionID, now)
	if err != nil {
		return nil, err
	}

	if !q.CanVote(now) {
		s.logger.Info("Vote rejected, poll closed",
			zap.String("question_id", q.ID),
			zap.String("user_id", userID))
		return nil, fmt.Errorf("question %s: %w", q.ID, domain.ErrVotingClosed)
	}

	if choiceID == "" {
		return nil, domain.ErrChoiceNotFound
	}
	choice, err := s.repos.Choice.FindByID(ctx, choiceID)
	if err != nil {
		return nil, err
	}
	if choice.QuestionID != q.ID {
		s.logger.Warn("Vote for a choice of another question",
			zap.String("question_id", q.ID),
			zap.String("choice_id", choiceID))
		return nil, domain.ErrChoiceNotFound
	}

	return s.RecordVote(ctx, userID, q.ID, choice.ID)
}

// RecordVote creates the user's ballot for the question or moves an
// existing one to choiceID. A unique-constraint conflict from a concurrent
// insert is retried once as an update.
func (s *VotingService) RecordVote(ctx context.Context, userID, questionID, choiceID string) (*domain.VoteResult, error) {
	result, err := s.createOrUpdate(ctx, userID, questionID, choiceID)
	if errors.Is(err, domain.ErrDuplicateBallot) {
		s.logger.Info("Concurrent ballot insert detected, retrying as update",
			zap.String("user_id", userID),
			zap.String("question_id", questionID))
		result, err = s.updateExisting(ctx, userID, questionID, choiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record ballot: %w", err)
	}

	if err := s.cacheService.InvalidateResults(ctx, questionID); err != nil {
		s.logger.Warn("Results may be stale until cache expiry", zap.String("question_id", questionID))
	}
	s.publish(ctx, result)
	s.metrics.BallotRecorded(result.Created)

	s.logger.Info("Ballot recorded",
		zap.String("ballot_id", result.Ballot.ID),
		zap.String("user_id", userID),
		zap.String("question_id", questionID),
		zap.Bool("created", result.Created))

	return result, nil
}

func (s *VotingService) createOrUpdate(ctx context.Context, userID, questionID, choiceID string) (*domain.VoteResult, error) {
	var result *domain.VoteResult

	err := s.repos.Transactor.WithTx(ctx, func(ctx context.Context) error {
		now := s.now()

		existing, err := s.repos.Ballot.FindByUserAndQuestion(ctx, userID, questionID)
		if err == nil {
			existing.ChoiceID = choiceID
			existing.UpdatedAt = now
			if err := s.repos.Ballot.Update(ctx, existing); err != nil {
				return err
			}
			result = &domain.VoteResult{Ballot: *existing, Created: false}
			return nil
		}
		if !errors.Is(err, domain.ErrBallotNotFound) {
			return err
		}

		ballot := &domain.Ballot{
			ID:         uuid.NewString(),
			UserID:     userID,
			QuestionID: questionID,
			ChoiceID:   choiceID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repos.Ballot.Create(ctx, ballot); err != nil {
			return err
		}
		result = &domain.VoteResult{Ballot: *ballot, Created: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *VotingService) updateExisting(ctx context.Context, userID, questionID, choiceID string) (*domain.VoteResult, error) {
	var result *domain.VoteResult

	err := s.repos.Transactor.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.repos.Ballot.FindByUserAndQuestion(ctx, userID, questionID)
		if err != nil {
			return err
		}
		existing.ChoiceID = choiceID
		existing.UpdatedAt = s.now()
		if err := s.repos.Ballot.Update(ctx, existing); err != nil {
			return err
		}
		result = &domain.VoteResult{Ballot: *existing, Created: false}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *VotingService) publish(ctx context.Context, result *domain.VoteResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := domain.BallotEvent{
		BallotID:   result.Ballot.ID,
		UserID:     result.Ballot.UserID,
		QuestionID: result.Ballot.QuestionID,
		ChoiceID:   result.Ballot.ChoiceID,
		Created:    result.Created,
		OccurredAt: result.Ballot.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error("Failed to publish ballot event",
			zap.String("ballot_id", ev.BallotID),
			zap.Error(err))
	}
}

func (s *VotingService) publishedQuestion(ctx context.Context, questionID string, now time.Time) (*domain.Question, error) {
	q, err := s.repos.Question.FindByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !q.IsPublished(now) {
		return nil, domain.ErrQuestionNotFound
	}
	return q, nil
}
