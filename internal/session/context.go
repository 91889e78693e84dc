// Package session carries the caller's identity through request contexts.
package session

import "context"

type ctxKey string

const sessionKey ctxKey = "radiance.session"

// Role is who is driving a booking flow.
type Role string

const (
	RoleGuest  Role = "guest"
	RoleClient Role = "client"
	RoleStaff  Role = "staff"
)

// Session identifies the caller. Guests carry no identity.
type Session struct {
	Role   Role   `json:"role"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// Guest is the anonymous session.
func Guest() Session { return Session{Role: RoleGuest} }

// IsStaff reports whether the caller authenticated as staff.
func (s Session) IsStaff() bool { return s.Role == RoleStaff && s.UserID != "" }

// IsClient reports whether the caller is a signed-in client.
func (s Session) IsClient() bool { return s.Role == RoleClient && s.UserID != "" }

// WithSession stores the session in context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext extracts the session, defaulting to a guest.
func FromContext(ctx context.Context) Session {
	s, ok := ctx.Value(sessionKey).(Session)
	if !ok || s.Role == "" {
		return Guest()
	}
	return s
}
