package domain

import "time"

// RecentWindow is how long after publication a question counts as recent
const RecentWindow = 24 * time.Hour

// Question is a poll question. Voting opens at PubDate and closes at
// EndDate; a nil EndDate means voting never closes.
type Question struct {
	ID      string     `json:"id"`
	Text    string     `json:"question_text"`
	PubDate time.Time  `json:"pub_date"`
	EndDate *time.Time `json:"end_date,omitempty"`
}

// Choice is one answer option of a question
type Choice struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"choice_text"`
}

// IsPublished reports whether the question is visible at now
func (q *Question) IsPublished(now time.Time) bool {
	return !now.Before(q.PubDate)
}

// CanVote reports whether ballots are accepted at now
func (q *Question) CanVote(now time.Time) bool {
	if now.Before(q.PubDate) {
		return false
	}
	if q.EndDate == nil {
		return true
	}
	return now.Before(*q.EndDate)
}

// WasPublishedRecently reports whether PubDate lies within the last 24h,
// bounds inclusive. A future PubDate is never recent.
func (q *Question) WasPublishedRecently(now time.Time) bool {
	return !q.PubDate.Before(now.Add(-RecentWindow)) && !q.PubDate.After(now)
}

// QuestionSummary is a question as listed on the index
type QuestionSummary struct {
	Question
	CanVote              bool `json:"can_vote"`
	WasPublishedRecently bool `json:"was_published_recently"`
}

// NewQuestionSummary evaluates the eligibility flags of q at now
func NewQuestionSummary(q Question, now time.Time) QuestionSummary {
	return QuestionSummary{
		Question:             q,
		CanVote:              q.CanVote(now),
		WasPublishedRecently: q.WasPublishedRecently(now),
	}
}

// QuestionDetail is a question with its choices and the caller's selection
type QuestionDetail struct {
	QuestionSummary
	Choices        []Choice `json:"choices"`
	SelectedChoice string   `json:"selected_choice,omitempty"`
}
