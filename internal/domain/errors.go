package domain

import "errors"

var (
	ErrQuestionNotFound   = errors.New("question not found")
	ErrChoiceNotFound     = errors.New("choice not found")
	ErrVotingClosed       = errors.New("voting is closed for this question")
	ErrBallotNotFound     = errors.New("ballot not found")
	ErrDuplicateBallot    = errors.New("ballot already exists for this user and question")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
)
