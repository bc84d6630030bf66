package model

import "time"

// Client is a depositor, keyed by phone number. Clients are registered on
// their first check-in and never deleted.
type Client struct {
	Phone       string    `json:"phone"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	BonusPoints int       `json:"bonus_points"`
	CreatedAt   time.Time `json:"created_at"`
}
