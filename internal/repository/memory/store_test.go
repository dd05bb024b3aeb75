package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ku-polls/internal/domain"
	"ku-polls/internal/repository"
)

func seed(t *testing.T, repos *repository.Repositories) (domain.User, domain.Question, domain.Choice, domain.Choice) {
	t.Helper()
	ctx := context.Background()

	u := domain.User{ID: "u1", Username: "alice", DateJoined: time.Now()}
	q := domain.Question{ID: "q1", Text: "Favourite colour?", PubDate: time.Now().Add(-time.Hour)}
	a := domain.Choice{ID: "c1", QuestionID: "q1", Text: "Red"}
	b := domain.Choice{ID: "c2", QuestionID: "q1", Text: "Blue"}

	require.NoError(t, repos.User.Create(ctx, &u))
	require.NoError(t, repos.Question.Create(ctx, &q))
	require.NoError(t, repos.Choice.Create(ctx, &a))
	require.NoError(t, repos.Choice.Create(ctx, &b))
	return u, q, a, b
}

func TestBallotRepo_UniqueIndex(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	u, q, a, b := seed(t, repos)

	require.NoError(t, repos.Ballot.Create(ctx, &domain.Ballot{ID: "b1", UserID: u.ID, QuestionID: q.ID, ChoiceID: a.ID}))

	err := repos.Ballot.Create(ctx, &domain.Ballot{ID: "b2", UserID: u.ID, QuestionID: q.ID, ChoiceID: b.ID})
	assert.ErrorIs(t, err, domain.ErrDuplicateBallot)

	got, err := repos.Ballot.FindByUserAndQuestion(ctx, u.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "b1", got.ID)
	assert.Equal(t, a.ID, got.ChoiceID)
}

func TestBallotRepo_CreateChecksReferences(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	u, q, _, _ := seed(t, repos)

	err := repos.Ballot.Create(ctx, &domain.Ballot{ID: "b1", UserID: "ghost", QuestionID: q.ID, ChoiceID: "c1"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	err = repos.Ballot.Create(ctx, &domain.Ballot{ID: "b1", UserID: u.ID, QuestionID: q.ID, ChoiceID: "nope"})
	assert.ErrorIs(t, err, domain.ErrChoiceNotFound)
}

func TestBallotRepo_UpdateAndCount(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	u, q, a, b := seed(t, repos)

	ballot := &domain.Ballot{ID: "b1", UserID: u.ID, QuestionID: q.ID, ChoiceID: a.ID}
	require.NoError(t, repos.Ballot.Create(ctx, ballot))

	ballot.ChoiceID = b.ID
	require.NoError(t, repos.Ballot.Update(ctx, ballot))

	counts, err := repos.Ballot.CountByQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{b.ID: 1}, counts)

	n, err := repos.Ballot.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, repos.Ballot.Update(ctx, &domain.Ballot{ID: "missing", ChoiceID: a.ID}), domain.ErrBallotNotFound)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	store := NewStore()
	repos := store.Repositories()
	ctx := context.Background()
	u, q, a, _ := seed(t, repos)

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repos.Ballot.Create(ctx, &domain.Ballot{ID: "b1", UserID: u.ID, QuestionID: q.ID, ChoiceID: a.ID}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.Ballot.FindByUserAndQuestion(ctx, u.ID, q.ID)
	assert.ErrorIs(t, err, domain.ErrBallotNotFound)
}

func TestStore_WithTxNested(t *testing.T) {
	store := NewStore()
	repos := store.Repositories()
	u, q, a, _ := seed(t, repos)

	err := store.WithTx(context.Background(), func(ctx context.Context) error {
		return store.WithTx(ctx, func(ctx context.Context) error {
			return repos.Ballot.Create(ctx, &domain.Ballot{ID: "b1", UserID: u.ID, QuestionID: q.ID, ChoiceID: a.ID})
		})
	})
	require.NoError(t, err)

	_, err = repos.Ballot.FindByUserAndQuestion(context.Background(), u.ID, q.ID)
	assert.NoError(t, err)
}

func TestQuestionRepo_ListPublished(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	now := time.Now()

	for i, offset := range []time.Duration{-3 * time.Hour, -time.Hour, -2 * time.Hour, time.Hour} {
		q := domain.Question{ID: string(rune('a' + i)), Text: "q", PubDate: now.Add(offset)}
		require.NoError(t, repos.Question.Create(ctx, &q))
	}

	list, err := repos.Question.ListPublished(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "c", list[1].ID)

	all, err := repos.Question.ListPublished(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "future question excluded")
}

func TestQuestionRepo_DeleteCascades(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	u, q, a, _ := seed(t, repos)
	require.NoError(t, repos.Ballot.Create(ctx, &domain.Ballot{ID: "b1", UserID: u.ID, QuestionID: q.ID, ChoiceID: a.ID}))

	require.NoError(t, repos.Question.Delete(ctx, q.ID))

	_, err := repos.Choice.FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrChoiceNotFound)
	n, err := repos.Ballot.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, repos.Question.Delete(ctx, q.ID), domain.ErrQuestionNotFound)
}

func TestChoiceRepo_ListKeepsCreationOrder(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	_, q, _, _ := seed(t, repos)
	require.NoError(t, repos.Choice.Create(ctx, &domain.Choice{ID: "a0", QuestionID: q.ID, Text: "Green"}))

	list, err := repos.Choice.ListByQuestion(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Red", "Blue", "Green"}, []string{list[0].Text, list[1].Text, list[2].Text})

	err = repos.Choice.Create(ctx, &domain.Choice{ID: "x", QuestionID: "nope", Text: "?"})
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
}

func TestUserRepo_UsernameUniqueness(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()

	alice := &domain.User{ID: "u1", Username: "alice"}
	bob := &domain.User{ID: "u2", Username: "bob"}
	require.NoError(t, repos.User.Create(ctx, alice))
	require.NoError(t, repos.User.Create(ctx, bob))

	assert.ErrorIs(t, repos.User.Create(ctx, &domain.User{ID: "u3", Username: "alice"}), domain.ErrUsernameTaken)

	bob.Username = "alice"
	assert.ErrorIs(t, repos.User.Update(ctx, bob), domain.ErrUsernameTaken)

	bob.Username = "robert"
	require.NoError(t, repos.User.Update(ctx, bob))

	_, err := repos.User.FindByUsername(ctx, "bob")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	got, err := repos.User.FindByUsername(ctx, "robert")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.ID)
}
