// Package memory is an in-process implementation of the repository
// interfaces. It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"ku-polls/internal/domain"
	"ku-polls/internal/repository"
)

type ballotKey struct {
	userID     string
	questionID string
}

type txKey struct{}

// Store holds all entities behind one mutex. A transaction keeps the mutex
// for its whole duration and restores a snapshot when it fails.
type Store struct {
	mu sync.Mutex

	questions map[string]domain.Question
	choices   map[string]domain.Choice
	choiceSeq map[string]int64
	ballots   map[string]domain.Ballot
	ballotIdx map[ballotKey]string // unique (user, question)
	users     map[string]domain.User
	usernames map[string]string
	seq       int64
}

// NewStore initializes storage
func NewStore() *Store {
	return &Store{
		questions: make(map[string]domain.Question),
		choices:   make(map[string]domain.Choice),
		choiceSeq: make(map[string]int64),
		ballots:   make(map[string]domain.Ballot),
		ballotIdx: make(map[ballotKey]string),
		users:     make(map[string]domain.User),
		usernames: make(map[string]string),
	}
}

// Repositories exposes the store through the repository interfaces
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Question:   &questionRepo{s},
		Choice:     &choiceRepo{s},
		Ballot:     &ballotRepo{s},
		User:       &userRepo{s},
		Transactor: s,
	}
}

// WithTx runs fn with exclusive access to the store. A nested call joins
// the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// lock takes the store mutex unless ctx already belongs to a transaction
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) snapshot() *Store {
	return &Store{
		questions: maps.Clone(s.questions),
		choices:   maps.Clone(s.choices),
		choiceSeq: maps.Clone(s.choiceSeq),
		ballots:   maps.Clone(s.ballots),
		ballotIdx: maps.Clone(s.ballotIdx),
		users:     maps.Clone(s.users),
		usernames: maps.Clone(s.usernames),
		seq:       s.seq,
	}
}

func (s *Store) restore(snap *Store) {
	s.questions = snap.questions
	s.choices = snap.choices
	s.choiceSeq = snap.choiceSeq
	s.ballots = snap.ballots
	s.ballotIdx = snap.ballotIdx
	s.users = snap.users
	s.usernames = snap.usernames
	s.seq = snap.seq
}

type questionRepo struct{ s *Store }

func (r *questionRepo) Create(ctx context.Context, q *domain.Question) error {
	defer r.s.lock(ctx)()

	if _, exists := r.s.questions[q.ID]; exists {
		return fmt.Errorf("question with ID %s already exists", q.ID)
	}
	r.s.questions[q.ID] = *q
	return nil
}

func (r *questionRepo) FindByID(ctx context.Context, id string) (*domain.Question, error) {
	defer r.s.lock(ctx)()

	q, ok := r.s.questions[id]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return &q, nil
}

func (r *questionRepo) ListPublished(ctx context.Context, now time.Time, limit int) ([]domain.Question, error) {
	defer r.s.lock(ctx)()

	list := make([]domain.Question, 0, len(r.s.questions))
	for _, q := range r.s.questions {
		if !q.PubDate.After(now) {
			list = append(list, q)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].PubDate.After(list[j].PubDate)
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *questionRepo) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(r.s.questions, id)

	for cid, c := range r.s.choices {
		if c.QuestionID == id {
			delete(r.s.choices, cid)
			delete(r.s.choiceSeq, cid)
		}
	}
	for bid, b := range r.s.ballots {
		if b.QuestionID == id {
			delete(r.s.ballots, bid)
			delete(r.s.ballotIdx, ballotKey{b.UserID, b.QuestionID})
		}
	}
	return nil
}

type choiceRepo struct{ s *Store }

func (r *choiceRepo) Create(ctx context.Context, c *domain.Choice) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.questions[c.QuestionID]; !ok {
		return fmt.Errorf("failed to create choice: %w", domain.ErrQuestionNotFound)
	}
	if _, exists := r.s.choices[c.ID]; exists {
		return fmt.Errorf("choice with ID %s already exists", c.ID)
	}
	r.s.seq++
	r.s.choices[c.ID] = *c
	r.s.choiceSeq[c.ID] = r.s.seq
	return nil
}

func (r *choiceRepo) FindByID(ctx context.Context, id string) (*domain.Choice, error) {
	defer r.s.lock(ctx)()

	c, ok := r.s.choices[id]
	if !ok {
		return nil, domain.ErrChoiceNotFound
	}
	return &c, nil
}

func (r *choiceRepo) ListByQuestion(ctx context.Context, questionID string) ([]domain.Choice, error) {
	defer r.s.lock(ctx)()

	var list []domain.Choice
	for _, c := range r.s.choices {
		if c.QuestionID == questionID {
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return r.s.choiceSeq[list[i].ID] < r.s.choiceSeq[list[j].ID]
	})
	return list, nil
}

type ballotRepo struct{ s *Store }

func (r *ballotRepo) FindByUserAndQuestion(ctx context.Context, userID, questionID string) (*domain.Ballot, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.ballotIdx[ballotKey{userID, questionID}]
	if !ok {
		return nil, domain.ErrBallotNotFound
	}
	b := r.s.ballots[id]
	return &b, nil
}

func (r *ballotRepo) Create(ctx context.Context, b *domain.Ballot) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.users[b.UserID]; !ok {
		return fmt.Errorf("failed to create ballot: %w", domain.ErrUserNotFound)
	}
	c, ok := r.s.choices[b.ChoiceID]
	if !ok || c.QuestionID != b.QuestionID {
		return fmt.Errorf("failed to create ballot: %w", domain.ErrChoiceNotFound)
	}

	key := ballotKey{b.UserID, b.QuestionID}
	if _, exists := r.s.ballotIdx[key]; exists {
		return domain.ErrDuplicateBallot
	}
	r.s.ballots[b.ID] = *b
	r.s.ballotIdx[key] = b.ID
	return nil
}

func (r *ballotRepo) Update(ctx context.Context, b *domain.Ballot) error {
	defer r.s.lock(ctx)()

	existing, ok := r.s.ballots[b.ID]
	if !ok {
		return domain.ErrBallotNotFound
	}
	if _, ok := r.s.choices[b.ChoiceID]; !ok {
		return fmt.Errorf("failed to update ballot: %w", domain.ErrChoiceNotFound)
	}
	existing.ChoiceID = b.ChoiceID
	existing.UpdatedAt = b.UpdatedAt
	r.s.ballots[b.ID] = existing
	return nil
}

func (r *ballotRepo) CountByQuestion(ctx context.Context, questionID string) (map[string]int, error) {
	defer r.s.lock(ctx)()

	counts := make(map[string]int)
	for _, b := range r.s.ballots {
		if b.QuestionID == questionID {
			counts[b.ChoiceID]++
		}
	}
	return counts, nil
}

func (r *ballotRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	defer r.s.lock(ctx)()

	n := 0
	for _, b := range r.s.ballots {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	defer r.s.lock(ctx)()

	if _, taken := r.s.usernames[u.Username]; taken {
		return domain.ErrUsernameTaken
	}
	if _, exists := r.s.users[u.ID]; exists {
		return fmt.Errorf("user with ID %s already exists", u.ID)
	}
	r.s.users[u.ID] = *u
	r.s.usernames[u.Username] = u.ID
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.usernames[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := r.s.users[id]
	return &u, nil
}

func (r *userRepo) Update(ctx context.Context, u *domain.User) error {
	defer r.s.lock(ctx)()

	existing, ok := r.s.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if existing.Username != u.Username {
		if _, taken := r.s.usernames[u.Username]; taken {
			return domain.ErrUsernameTaken
		}
		delete(r.s.usernames, existing.Username)
		r.s.usernames[u.Username] = u.ID
	}
	r.s.users[u.ID] = *u
	return nil
}
