package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ku-polls/internal/domain"
	"ku-polls/pkg/database"
)

type PostgresQuestionRepository struct {
	db *database.PostgresDB
}

func NewQuestionRepository(db *database.PostgresDB) *PostgresQuestionRepository {
	return &PostgresQuestionRepository{db: db}
}

func (r *PostgresQuestionRepository) Create(ctx context.Context, q *domain.Question) error {
	query := `
		INSERT INTO questions (id, question_text, pub_date, end_date)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.Conn(ctx).Exec(ctx, query, q.ID, q.Text, q.PubDate, q.EndDate); err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (r *PostgresQuestionRepository) FindByID(ctx context.Context, id string) (*domain.Question, error) {
	var q domain.Question
	query := `
		SELECT id, question_text, pub_date, end_date
		FROM questions
		WHERE id = $1
	`

	err := r.db.Conn(ctx).QueryRow(ctx, query, id).Scan(&q.ID, &q.Text, &q.PubDate, &q.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	return &q, nil
}

func (r *PostgresQuestionRepository) ListPublished(ctx context.Context, now time.Time, limit int) ([]domain.Question, error) {
	query := `
		SELECT id, question_text, pub_date, end_date
		FROM questions
		WHERE pub_date <= $1
		ORDER BY pub_date DESC
		LIMIT $2
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0, limit)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.PubDate, &q.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}

	return questions, nil
}

// Delete relies on ON DELETE CASCADE for choices and ballots
func (r *PostgresQuestionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}
