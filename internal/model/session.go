package model

import "time"

// Session is the authenticated identity returned by a successful login.
// For staff, Identifier is the username; for clients it is the phone number.
type Session struct {
	Identifier string    `json:"identifier"`
	Role       string    `json:"role"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
}

// IsClient reports whether the session belongs to a depositor.
func (s Session) IsClient() bool {
	return s.Role == RoleClient
}
