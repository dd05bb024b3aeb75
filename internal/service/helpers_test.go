package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ku-polls/internal/domain"
	"ku-polls/internal/repository"
	"ku-polls/internal/repository/memory"
	"ku-polls/internal/service/password"
	"ku-polls/pkg/logger"
	"ku-polls/pkg/redis"
)

type fakeValidator struct {
	err   error
	calls int
}

func (f *fakeValidator) Validate(context.Context, string) error {
	f.calls++
	return f.err
}

func (f *fakeValidator) HelpText() string { return "help" }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.BallotEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.BallotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) OnLogin(_ context.Context, u *domain.User, _ string) {
	o.events = append(o.events, "login:"+u.Username)
}

func (o *recordingObserver) OnLogout(_ context.Context, u *domain.User, _ string) {
	o.events = append(o.events, "logout:"+u.Username)
}

func (o *recordingObserver) OnLoginFailed(_ context.Context, username, _ string) {
	o.events = append(o.events, "failed:"+username)
}

// fixture is a poll world on the in-memory store
type fixture struct {
	repos *repository.Repositories
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		repos: memory.NewStore().Repositories(),
		now:   time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) user(t *testing.T, username string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Correct1!"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{ID: "user-" + username, Username: username, PasswordHash: string(hash), DateJoined: f.now}
	require.NoError(t, f.repos.User.Create(context.Background(), u))
	return u
}

func (f *fixture) question(t *testing.T, id string, pubOffset time.Duration, end *time.Time, choices ...string) (*domain.Question, []domain.Choice) {
	t.Helper()
	ctx := context.Background()

	q := &domain.Question{ID: id, Text: "Question " + id, PubDate: f.now.Add(pubOffset), EndDate: end}
	require.NoError(t, f.repos.Question.Create(ctx, q))

	var created []domain.Choice
	for _, text := range choices {
		c := domain.Choice{ID: id + "-" + text, QuestionID: id, Text: text}
		require.NoError(t, f.repos.Choice.Create(ctx, &c))
		created = append(created, c)
	}
	return q, created
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newVotingService(f *fixture, redisClient *redis.Client, pub *recordingPublisher) *VotingService {
	cache := NewCacheService(redisClient, zap.NewNop(), nil)
	var svc *VotingService
	if pub == nil {
		svc = NewVotingService(f.repos, cache, nil, nil, zap.NewNop(), 5)
	} else {
		svc = NewVotingService(f.repos, cache, pub, nil, zap.NewNop(), 5)
	}
	svc.now = func() time.Time { return f.now }
	return svc
}

func newAccountService(f *fixture, v *fakeValidator, redisClient *redis.Client) *AccountService {
	limiter := NewLoginLimiter(redisClient, 5, time.Hour, logger.NewNop())
	svc := NewAccountService(f.repos.User, f.repos.Ballot, v, limiter, logger.NewNop())
	svc.bcryptCost = bcrypt.MinCost
	svc.now = func() time.Time { return f.now }
	return svc
}

func policyRejection(reason, message string) error {
	return &password.ValidationError{Reason: reason, Message: message}
}

var errBoom = errors.New("boom")
