package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	// Get command
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate [drop|up|seed|reset]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Connect to database
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("All tables dropped successfully")

	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("All tables created successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("Data seeded successfully")

	case "reset":
		for _, step := range []func(context.Context, *pgx.Conn) error{dropTables, createTables, seedData} {
			if err := step(ctx, conn); err != nil {
				log.Fatalf("Failed to reset database: %v", err)
			}
		}
		fmt.Println("Database reset successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		DROP TABLE IF EXISTS ballots CASCADE;
		DROP TABLE IF EXISTS choices CASCADE;
		DROP TABLE IF EXISTS questions CASCADE;
		DROP TABLE IF EXISTS users CASCADE;
	`)
	return err
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      VARCHAR(150) NOT NULL,
			password_hash TEXT NOT NULL,
			is_staff      BOOLEAN NOT NULL DEFAULT FALSE,
			date_joined   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login    TIMESTAMPTZ,
			session_version INT NOT NULL DEFAULT 0,
			CONSTRAINT users_username_key UNIQUE (username)
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id            TEXT PRIMARY KEY,
			question_text VARCHAR(200) NOT NULL,
			pub_date      TIMESTAMPTZ NOT NULL,
			end_date      TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_pub_date ON questions (pub_date DESC)`,
		`CREATE TABLE IF NOT EXISTS choices (
			id          TEXT PRIMARY KEY,
			question_id TEXT NOT NULL REFERENCES questions (id) ON DELETE CASCADE,
			choice_text VARCHAR(200) NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_choices_question ON choices (question_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS ballots (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			question_id TEXT NOT NULL REFERENCES questions (id) ON DELETE CASCADE,
			choice_id   TEXT NOT NULL REFERENCES choices (id) ON DELETE CASCADE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT ballots_user_question_key UNIQUE (user_id, question_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ballots_question ON ballots (question_id)`,
	}

	for _, q := range queries {
		if _, err := conn.Exec(ctx, q); err != nil {
			stmt, _, _ := strings.Cut(q, "\n")
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}

// seedData inserts a handful of polls in different lifecycle states
func seedData(ctx context.Context, conn *pgx.Conn) error {
	now := time.Now().UTC()
	closedAt := now.Add(-24 * time.Hour)

	polls := []struct {
		text    string
		pubDate time.Time
		endDate *time.Time
		choices []string
	}{
		{"What's your favorite programming language?", now.Add(-2 * time.Hour), nil, []string{"Go", "Python", "Rust", "TypeScript"}},
		{"Which campus cafeteria is the best?", now.Add(-72 * time.Hour), nil, []string{"Central", "Engineering", "Science"}},
		{"Should the library open 24 hours?", now.Add(-10 * 24 * time.Hour), &closedAt, []string{"Yes", "No"}},
		{"Next semester's club activity?", now.Add(7 * 24 * time.Hour), nil, []string{"Hackathon", "Hiking", "Movie night"}},
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range polls {
		questionID := uuid.NewString()
		if _, err := tx.Exec(ctx,
			`INSERT INTO questions (id, question_text, pub_date, end_date) VALUES ($1, $2, $3, $4)`,
			questionID, p.text, p.pubDate, p.endDate,
		); err != nil {
			return fmt.Errorf("failed to insert question %q: %w", p.text, err)
		}

		for _, c := range p.choices {
			if _, err := tx.Exec(ctx,
				`INSERT INTO choices (id, question_id, choice_text) VALUES ($1, $2, $3)`,
				uuid.NewString(), questionID, c,
			); err != nil {
				return fmt.Errorf("failed to insert choice %q: %w", c, err)
			}
		}
	}

	return tx.Commit(ctx)
}
