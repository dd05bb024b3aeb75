package repository

import "ku-polls/pkg/database"

// NewPostgresRepositories wires every repository to one connection pool
func NewPostgresRepositories(db *database.PostgresDB) *Repositories {
	return &Repositories{
		Question:   NewQuestionRepository(db),
		Choice:     NewChoiceRepository(db),
		Ballot:     NewBallotRepository(db),
		User:       NewUserRepository(db),
		Transactor: db,
	}
}
