package password

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"ku-polls/internal/metrics"
)

// Rejection reasons
const (
	ReasonMissingUppercase  = "missing_uppercase"
	ReasonMissingLowercase  = "missing_lowercase"
	ReasonMissingDigit      = "missing_digit"
	ReasonMissingSpecial    = "missing_special"
	ReasonBreachUnavailable = "breach_unavailable"
	ReasonCompromised       = "compromised"
)

// SpecialCharacters is the set that satisfies the special character rule
const SpecialCharacters = `!@#$%^&*(),.?":{}|<>`

const helpText = "Your password must contain at least one uppercase letter, " +
	"one lowercase letter, one digit, one special character, and " +
	"must not be a known compromised password."

// ValidationError is a rejected password
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AsValidationError extracts a *ValidationError from err's chain
func AsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	ok := errors.As(err, &vErr)
	return vErr, ok
}

type rule struct {
	reason  string
	message string
	ok      func(string) bool
}

var rules = []rule{
	{ReasonMissingUppercase, "Password must contain at least one uppercase letter.", containsRange('A', 'Z')},
	{ReasonMissingLowercase, "Password must contain at least one lowercase letter.", containsRange('a', 'z')},
	{ReasonMissingDigit, "Password must contain at least one digit.", containsRange('0', '9')},
	{ReasonMissingSpecial, "Password must contain at least one special character.", func(s string) bool {
		return strings.ContainsAny(s, SpecialCharacters)
	}},
}

func containsRange(lo, hi rune) func(string) bool {
	return func(s string) bool {
		return strings.ContainsFunc(s, func(r rune) bool { return r >= lo && r <= hi })
	}
}

// Validator enforces the password policy: local character-class rules
// first, then the breach lookup.
type Validator struct {
	breach  BreachChecker
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewValidator creates a validator. m may be nil.
func NewValidator(breach BreachChecker, log *zap.Logger, m *metrics.Metrics) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{breach: breach, log: log, metrics: m}
}

// HelpText describes the password requirements
func (v *Validator) HelpText() string {
	return helpText
}

// Validate returns nil when password is acceptable, otherwise a
// *ValidationError for the first failing check. A failed breach lookup
// rejects the password.
func (v *Validator) Validate(ctx context.Context, password string) error {
	for _, r := range rules {
		if !r.ok(password) {
			v.log.Warn("Password rejected by policy", zap.String("reason", r.reason))
			return v.reject(r.reason, r.message)
		}
	}

	start := time.Now()
	compromised, err := v.breach.IsCompromised(ctx, password)
	elapsed := time.Since(start)

	if err != nil {
		v.metrics.ObserveBreachLookup("error", elapsed)
		v.log.Error("Failed to check password against breach database",
			zap.Error(err),
			zap.Duration("duration", elapsed))
		return v.reject(ReasonBreachUnavailable,
			"Could not validate the password against compromised databases. Please try again later.")
	}
	v.metrics.ObserveBreachLookup("ok", elapsed)

	if compromised {
		v.log.Warn("Password found in breach database")
		return v.reject(ReasonCompromised, "This password has been compromised and cannot be used.")
	}

	v.log.Debug("Password accepted")
	return nil
}

func (v *Validator) reject(reason, message string) error {
	v.metrics.PasswordRejected(reason)
	return &ValidationError{Reason: reason, Message: message}
}
