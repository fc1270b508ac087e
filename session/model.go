package session

import "time"

// Session is the stored session record. Timestamps are unix seconds.
type Session struct {
	ID        string
	UserID    string
	CreatedAt int64
	ExpiresAt int64
}

// Remaining returns the time left before the absolute expiry.
func (s *Session) Remaining(now time.Time) time.Duration {
	return time.Unix(s.ExpiresAt, 0).Sub(now)
}

// Expired reports whether the absolute expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.Remaining(now) <= 0
}
