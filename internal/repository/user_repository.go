package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ku-polls/internal/domain"
	"ku-polls/pkg/database"
)

type PostgresUserRepository struct {
	db *database.PostgresDB
}

func NewUserRepository(db *database.PostgresDB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, is_staff, date_joined, last_login, session_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		u.ID,
		u.Username,
		u.PasswordHash,
		u.IsStaff,
		u.DateJoined,
		u.LastLogin,
		u.SessionVersion,
	)
	if database.IsUniqueViolation(err, "users_username_key") {
		return domain.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, `WHERE username = $1`, username)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	query := `
		SELECT id, username, password_hash, is_staff, date_joined, last_login, session_version
		FROM users
	` + where

	err := r.db.Conn(ctx).QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.IsStaff,
		&u.DateJoined,
		&u.LastLogin,
		&u.SessionVersion,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users
		SET username = $1, password_hash = $2, last_login = $3, session_version = $4
		WHERE id = $5
	`

	tag, err := r.db.Conn(ctx).Exec(ctx, query, u.Username, u.PasswordHash, u.LastLogin, u.SessionVersion, u.ID)
	if database.IsUniqueViolation(err, "users_username_key") {
		return domain.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}
