package domain

import (
	"time"
)

// Ballot is a user's single selection for a question. There is at most one
// ballot per (UserID, QuestionID).
type Ballot struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	QuestionID string    `json:"question_id"`
	ChoiceID   string    `json:"choice_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// VoteRequest represents a vote submission request
type VoteRequest struct {
	ChoiceID string `json:"choice"`
}

// VoteResult is the outcome of recording a ballot
type VoteResult struct {
	Ballot  Ballot `json:"ballot"`
	Created bool   `json:"created"`
}

// ChoiceTally is a choice with its derived vote count
type ChoiceTally struct {
	Choice
	Votes int `json:"votes"`
}

// QuestionResults represents the tally of a question
type QuestionResults struct {
	Question   Question      `json:"question"`
	Choices    []ChoiceTally `json:"choices"`
	TotalVotes int           `json:"total_votes"`
	CanVote    bool          `json:"can_vote"`
	LastUpdate time.Time     `json:"last_update"`
}

// BallotEvent is published after a ballot is created or changed
type BallotEvent struct {
	BallotID   string    `json:"ballot_id"`
	UserID     string    `json:"user_id"`
	QuestionID string    `json:"question_id"`
	ChoiceID   string    `json:"choice_id"`
	Created    bool      `json:"created"`
	OccurredAt time.Time `json:"occurred_at"`
}
