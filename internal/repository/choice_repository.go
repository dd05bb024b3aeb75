package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ku-polls/internal/domain"
	"ku-polls/pkg/database"
)

type PostgresChoiceRepository struct {
	db *database.PostgresDB
}

func NewChoiceRepository(db *database.PostgresDB) *PostgresChoiceRepository {
	return &PostgresChoiceRepository{db: db}
}

func (r *PostgresChoiceRepository) Create(ctx context.Context, c *domain.Choice) error {
	query := `
		INSERT INTO choices (id, question_id, choice_text)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query, c.ID, c.QuestionID, c.Text)
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("failed to create choice: %w", domain.ErrQuestionNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to create choice: %w", err)
	}
	return nil
}

func (r *PostgresChoiceRepository) FindByID(ctx context.Context, id string) (*domain.Choice, error) {
	var c domain.Choice
	query := `
		SELECT id, question_id, choice_text
		FROM choices
		WHERE id = $1
	`

	err := r.db.Conn(ctx).QueryRow(ctx, query, id).Scan(&c.ID, &c.QuestionID, &c.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrChoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get choice: %w", err)
	}

	return &c, nil
}

func (r *PostgresChoiceRepository) ListByQuestion(ctx context.Context, questionID string) ([]domain.Choice, error) {
	query := `
		SELECT id, question_id, choice_text
		FROM choices
		WHERE question_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list choices: %w", err)
	}
	defer rows.Close()

	var choices []domain.Choice
	for rows.Next() {
		var c domain.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Text); err != nil {
			return nil, fmt.Errorf("failed to scan choice: %w", err)
		}
		choices = append(choices, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate choices: %w", err)
	}

	return choices, nil
}
