package domain

import "time"

// Session is the authenticated identity of the running client instance.
// An absent session is represented by the zero value and a false flag
// wherever a session is returned.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session carries an identity and has not expired at now.
func (s Session) Valid(now time.Time) bool {
	if s.UserID == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}
