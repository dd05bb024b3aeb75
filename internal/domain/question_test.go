package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(t time.Time) *time.Time { return &t }

func TestQuestion_IsPublished(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		pubDate time.Time
		want    bool
	}{
		{"published in the past", now.Add(-time.Hour), true},
		{"published exactly now", now, true},
		{"published in the future", now.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Question{PubDate: tt.pubDate}
			assert.Equal(t, tt.want, q.IsPublished(now))
		})
	}
}

func TestQuestion_CanVote(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		pubDate time.Time
		endDate *time.Time
		want    bool
	}{
		{"no end date, published", now.Add(-48 * time.Hour), nil, true},
		{"no end date, published now", now, nil, true},
		{"no end date, future", now.Add(time.Hour), nil, false},
		{"inside window", now.Add(-time.Hour), ptr(now.Add(time.Hour)), true},
		{"end date reached", now.Add(-time.Hour), ptr(now), false},
		{"after end date", now.Add(-2 * time.Hour), ptr(now.Add(-time.Hour)), false},
		{"future with open end date", now.Add(time.Hour), ptr(now.Add(48 * time.Hour)), false},
		{"future with end date before pub date", now.Add(time.Hour), ptr(now.Add(-time.Hour)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Question{PubDate: tt.pubDate, EndDate: tt.endDate}
			assert.Equal(t, tt.want, q.CanVote(now))
		})
	}
}

func TestQuestion_WasPublishedRecently(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		pubDate time.Time
		want    bool
	}{
		{"now", now, true},
		{"one hour ago", now.Add(-time.Hour), true},
		{"exactly 24h ago", now.Add(-24 * time.Hour), true},
		{"just over 24h ago", now.Add(-24*time.Hour - time.Second), false},
		{"one second in the future", now.Add(time.Second), false},
		{"thirty days in the future", now.Add(30 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Question{PubDate: tt.pubDate}
			assert.Equal(t, tt.want, q.WasPublishedRecently(now))
		})
	}
}

func TestNewQuestionSummary(t *testing.T) {
	now := time.Now()
	q := Question{ID: "q1", Text: "Best language?", PubDate: now.Add(-time.Hour), EndDate: ptr(now.Add(-time.Minute))}

	s := NewQuestionSummary(q, now)

	assert.Equal(t, "q1", s.ID)
	assert.False(t, s.CanVote)
	assert.True(t, s.WasPublishedRecently)
}
