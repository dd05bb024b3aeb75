package domain

import "time"

// User represents an account in the system
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	IsStaff      bool       `json:"is_staff"`
	DateJoined   time.Time  `json:"date_joined"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	// SessionVersion is bumped to revoke every session issued before it
	SessionVersion int `json:"-"`
}

// SignupRequest represents the signup form
type SignupRequest struct {
	Username  string `json:"username"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

// LoginRequest represents the login form
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangeUsernameRequest represents the username change form
type ChangeUsernameRequest struct {
	NewUsername string `json:"new_username"`
	Password    string `json:"password"`
}

// ChangePasswordRequest represents the password change form
type ChangePasswordRequest struct {
	OldPassword  string `json:"old_password"`
	NewPassword1 string `json:"new_password1"`
	NewPassword2 string `json:"new_password2"`
}

// SessionClaims represents the verified contents of a session token
type SessionClaims struct {
	UserID         string    `json:"sub"`
	Username       string    `json:"username"`
	SessionVersion int       `json:"ver"`
	IssuedAt       time.Time `json:"iat"`
	ExpiresAt      time.Time `json:"exp"`
}

// Session is a freshly issued session token
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Profile is what the account management page shows
type Profile struct {
	Username    string     `json:"username"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	BallotsCast int        `json:"ballots_cast"`
}
