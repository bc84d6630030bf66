package model

import (
	"fmt"
	"regexp"
	"time"
)

// User is a staff account. Clients have no User record.
type User struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	IsBlocked bool      `json:"is_blocked"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleClient is the pseudo-role of depositors. It is resolved through the
// client registry instead of the user store.
const RoleClient = "client"

// Staff roles shipped in the default permission configuration. The set is
// open: any role named in the permission config is valid.
const (
	RoleCashier    = "cashier"
	RoleAdmin      = "admin"
	RoleCreator    = "creator"
	RoleSuperAdmin = "superadmin"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,64}$`)

// ValidateUsername checks that a username is 2-64 characters of letters,
// digits, dot, underscore or dash.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("username must be 2-64 characters of letters, digits, '.', '_' or '-'")
	}
	return nil
}
