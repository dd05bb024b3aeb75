package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ku-polls/internal/domain"
	"ku-polls/pkg/database"
)

// BallotUniqueConstraint is the storage-level guard for one ballot per user and question
const BallotUniqueConstraint = "ballots_user_question_key"

type PostgresBallotRepository struct {
	db *database.PostgresDB
}

func NewBallotRepository(db *database.PostgresDB) *PostgresBallotRepository {
	return &PostgresBallotRepository{db: db}
}

func (r *PostgresBallotRepository) FindByUserAndQuestion(ctx context.Context, userID, questionID string) (*domain.Ballot, error) {
	var b domain.Ballot
	query := `
		SELECT id, user_id, question_id, choice_id, created_at, updated_at
		FROM ballots
		WHERE user_id = $1 AND question_id = $2
	`

	err := r.db.Conn(ctx).QueryRow(ctx, query, userID, questionID).Scan(
		&b.ID,
		&b.UserID,
		&b.QuestionID,
		&b.ChoiceID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBallotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ballot: %w", err)
	}

	return &b, nil
}

func (r *PostgresBallotRepository) Create(ctx context.Context, b *domain.Ballot) error {
	query := `
		INSERT INTO ballots (id, user_id, question_id, choice_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		b.ID,
		b.UserID,
		b.QuestionID,
		b.ChoiceID,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if database.IsUniqueViolation(err, BallotUniqueConstraint) {
		return domain.ErrDuplicateBallot
	}
	if err != nil {
		return fmt.Errorf("failed to create ballot: %w", err)
	}

	return nil
}

func (r *PostgresBallotRepository) Update(ctx context.Context, b *domain.Ballot) error {
	query := `
		UPDATE ballots
		SET choice_id = $1, updated_at = $2
		WHERE id = $3
	`

	tag, err := r.db.Conn(ctx).Exec(ctx, query, b.ChoiceID, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update ballot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBallotNotFound
	}

	return nil
}

func (r *PostgresBallotRepository) CountByQuestion(ctx context.Context, questionID string) (map[string]int, error) {
	query := `
		SELECT choice_id, COUNT(*)
		FROM ballots
		WHERE question_id = $1
		GROUP BY choice_id
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count ballots: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			choiceID string
			count    int
		)
		if err := rows.Scan(&choiceID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan ballot count: %w", err)
		}
		counts[choiceID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ballot counts: %w", err)
	}

	return counts, nil
}

func (r *PostgresBallotRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.Conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ballots WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user ballots: %w", err)
	}
	return count, nil
}
