package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ku-polls/internal/domain"
	"ku-polls/internal/service/password"
	apperrors "ku-polls/pkg/errors"
)

func requireAppError(t *testing.T, err error, status int, message string) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected *AppError, got %T", err)
	assert.Equal(t, status, appErr.StatusCode)
	assert.Equal(t, message, appErr.Message)
	return appErr
}

func TestAccountService_SignupSuccess(t *testing.T) {
	f := newFixture(t)
	v := &fakeValidator{}
	svc := newAccountService(f, v, nil)

	user, err := svc.Signup(context.Background(), domain.SignupRequest{
		Username:  "newuser",
		Password1: "Password1!",
		Password2: "Password1!",
	})
	require.NoError(t, err)
	assert.Equal(t, "newuser", user.Username)
	assert.NotEqual(t, "Password1!", user.PasswordHash)
	assert.Equal(t, f.now, user.DateJoined)
	assert.Equal(t, 1, v.calls)

	stored, err := f.repos.User.FindByUsername(context.Background(), "newuser")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

func TestAccountService_SignupFailuresCreateNoUser(t *testing.T) {
	tests := []struct {
		name      string
		req       domain.SignupRequest
		validator *fakeValidator
		status    int
		message   string
		field     string
	}{
		{
			name:    "blank fields",
			req:     domain.SignupRequest{},
			status:  http.StatusBadRequest,
			message: MsgFieldRequired,
			field:   "username",
		},
		{
			name:    "blank confirmation",
			req:     domain.SignupRequest{Username: "newuser", Password1: "Password1!"},
			status:  http.StatusBadRequest,
			message: MsgFieldRequired,
			field:   "password2",
		},
		{
			name:    "mismatched passwords",
			req:     domain.SignupRequest{Username: "newuser", Password1: "Password1!", Password2: "Password2!"},
			status:  http.StatusBadRequest,
			message: MsgPasswordMismatch,
			field:   "password2",
		},
		{
			name:    "invalid username",
			req:     domain.SignupRequest{Username: "new user", Password1: "Password1!", Password2: "Password1!"},
			status:  http.StatusBadRequest,
			message: MsgInvalidUsername,
			field:   "username",
		},
		{
			name:    "username too long",
			req:     domain.SignupRequest{Username: strings.Repeat("a", 151), Password1: "Password1!", Password2: "Password1!"},
			status:  http.StatusBadRequest,
			message: MsgUsernameTooLong,
			field:   "username",
		},
		{
			name: "weak password",
			req:  domain.SignupRequest{Username: "newuser", Password1: "password1!", Password2: "password1!"},
			validator: &fakeValidator{err: policyRejection(password.ReasonMissingUppercase,
				"Password must contain at least one uppercase letter.")},
			status:  http.StatusBadRequest,
			message: "Password must contain at least one uppercase letter.",
			field:   "password2",
		},
		{
			name: "breach lookup down",
			req:  domain.SignupRequest{Username: "newuser", Password1: "Password1!", Password2: "Password1!"},
			validator: &fakeValidator{err: policyRejection(password.ReasonBreachUnavailable,
				"Could not validate the password against compromised databases. Please try again later.")},
			status:  http.StatusBadRequest,
			message: "Could not validate the password against compromised databases. Please try again later.",
			field:   "password2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			v := tt.validator
			if v == nil {
				v = &fakeValidator{}
			}
			svc := newAccountService(f, v, nil)

			user, err := svc.Signup(context.Background(), tt.req)
			assert.Nil(t, user)
			appErr := requireAppError(t, err, tt.status, tt.message)
			assert.Equal(t, tt.field, appErr.Details["field"])

			_, err = f.repos.User.FindByUsername(context.Background(), tt.req.Username)
			assert.ErrorIs(t, err, domain.ErrUserNotFound)
		})
	}
}

func TestAccountService_SignupDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.user(t, "testuser")
	v := &fakeValidator{}
	svc := newAccountService(f, v, nil)

	_, err := svc.Signup(context.Background(), domain.SignupRequest{
		Username:  "testuser",
		Password1: "Password1!",
		Password2: "Password1!",
	})
	appErr := requireAppError(t, err, http.StatusConflict, MsgUsernameTaken)
	assert.ErrorIs(t, appErr, domain.ErrUsernameTaken)
	assert.Zero(t, v.calls, "duplicate username is reported before the password check")
}

func TestAccountService_Authenticate(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice")
	obs := &recordingObserver{}
	svc := newAccountService(f, &fakeValidator{}, nil)
	svc.RegisterObserver(obs)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "alice", "wrong", "10.0.0.1")
	appErr := requireAppError(t, err, http.StatusUnauthorized, MsgInvalidLogin)
	assert.ErrorIs(t, appErr, domain.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ghost", "Correct1!", "10.0.0.1")
	requireAppError(t, err, http.StatusUnauthorized, MsgInvalidLogin)

	user, err := svc.Authenticate(ctx, "alice", "Correct1!", "10.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)
	assert.Equal(t, f.now, *user.LastLogin)

	require.NoError(t, svc.Logout(ctx, user.ID, "10.0.0.1"))
	stored, err := f.repos.User.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.SessionVersion+1, stored.SessionVersion)

	assert.Equal(t, []string{"failed:alice", "failed:ghost", "login:alice", "logout:alice"}, obs.events)
}

func TestAccountService_LockoutAfterFiveFailures(t *testing.T) {
	f := newFixture(t)
	f.user(t, "testuser")
	mr, client := newTestRedis(t)
	svc := newAccountService(f, &fakeValidator{}, client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Authenticate(ctx, "testuser", "InvalidPassword!", "10.0.0.1")
		requireAppError(t, err, http.StatusUnauthorized, MsgInvalidLogin)
	}

	_, err := svc.Authenticate(ctx, "testuser", "Correct1!", "10.0.0.1")
	appErr := requireAppError(t, err, http.StatusForbidden, MsgAccountLocked)
	assert.ErrorIs(t, appErr, domain.ErrAccountLocked)
	assert.Equal(t, apperrors.ErrorTypeLocked, appErr.Type)

	// another client address is not affected
	_, err = svc.Authenticate(ctx, "testuser", "Correct1!", "10.0.0.2")
	require.NoError(t, err)

	// lock expires with the cool-off window
	mr.FastForward(time.Hour + time.Second)
	_, err = svc.Authenticate(ctx, "testuser", "Correct1!", "10.0.0.1")
	require.NoError(t, err)
}

func TestAccountService_SuccessfulLoginResetsFailures(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice")
	_, client := newTestRedis(t)
	svc := newAccountService(f, &fakeValidator{}, client)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = svc.Authenticate(ctx, "alice", "nope", "10.0.0.1")
	}
	_, err := svc.Authenticate(ctx, "alice", "Correct1!", "10.0.0.1")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, _ = svc.Authenticate(ctx, "alice", "nope", "10.0.0.1")
	}
	_, err = svc.Authenticate(ctx, "alice", "Correct1!", "10.0.0.1")
	assert.NoError(t, err)
}

func TestAccountService_ChangeUsername(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	f.user(t, "bob")
	svc := newAccountService(f, &fakeValidator{}, nil)
	ctx := context.Background()

	_, err := svc.ChangeUsername(ctx, alice.ID, "alicia", "wrong")
	requireAppError(t, err, http.StatusBadRequest, MsgIncorrectPassword)

	_, err = svc.ChangeUsername(ctx, alice.ID, "bob", "Correct1!")
	requireAppError(t, err, http.StatusConflict, MsgUsernameTaken)

	_, err = svc.ChangeUsername(ctx, alice.ID, "", "Correct1!")
	requireAppError(t, err, http.StatusBadRequest, MsgFieldRequired)

	_, err = svc.ChangeUsername(ctx, alice.ID, "bad name!", "Correct1!")
	appErr := requireAppError(t, err, http.StatusBadRequest, MsgInvalidUsername)
	assert.Equal(t, "new_username", appErr.Details["field"])

	user, err := svc.ChangeUsername(ctx, alice.ID, "alicia", "Correct1!")
	require.NoError(t, err)
	assert.Equal(t, "alicia", user.Username)

	_, err = f.repos.User.FindByUsername(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAccountService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	v := &fakeValidator{}
	svc := newAccountService(f, v, nil)
	ctx := context.Background()

	_, err := svc.ChangePassword(ctx, alice.ID, "wrong", "NewPass1!", "NewPass1!")
	requireAppError(t, err, http.StatusBadRequest, MsgOldPasswordWrong)

	_, err = svc.ChangePassword(ctx, alice.ID, "Correct1!", "NewPass1!", "NewPass2!")
	requireAppError(t, err, http.StatusBadRequest, MsgPasswordMismatch)
	assert.Zero(t, v.calls)

	v.err = policyRejection(password.ReasonCompromised, "This password has been compromised and cannot be used.")
	_, err = svc.ChangePassword(ctx, alice.ID, "Correct1!", "NewPass1!", "NewPass1!")
	appErr := requireAppError(t, err, http.StatusBadRequest, "This password has been compromised and cannot be used.")
	assert.Equal(t, password.ReasonCompromised, appErr.Details["reason"])

	stored, err := f.repos.User.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.SessionVersion)

	v.err = nil
	changed, err := svc.ChangePassword(ctx, alice.ID, "Correct1!", "NewPass1!", "NewPass1!")
	require.NoError(t, err)
	assert.Equal(t, 1, changed.SessionVersion)

	_, err = svc.Authenticate(ctx, "alice", "Correct1!", "10.0.0.1")
	requireAppError(t, err, http.StatusUnauthorized, MsgInvalidLogin)
	_, err = svc.Authenticate(ctx, "alice", "NewPass1!", "10.0.0.1")
	assert.NoError(t, err)
}

func TestAccountService_GetProfile(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	q1, c1 := f.question(t, "q1", -time.Hour, nil, "A")
	q2, c2 := f.question(t, "q2", -time.Hour, nil, "A")
	ctx := context.Background()
	require.NoError(t, f.repos.Ballot.Create(ctx, &domain.Ballot{ID: "b1", UserID: alice.ID, QuestionID: q1.ID, ChoiceID: c1[0].ID}))
	require.NoError(t, f.repos.Ballot.Create(ctx, &domain.Ballot{ID: "b2", UserID: alice.ID, QuestionID: q2.ID, ChoiceID: c2[0].ID}))

	svc := newAccountService(f, &fakeValidator{}, nil)

	profile, err := svc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, 2, profile.BallotsCast)

	_, err = svc.GetProfile(ctx, "ghost")
	requireAppError(t, err, http.StatusUnauthorized, "Session user no longer exists")
}
