// Package permission maps roles to the actions they may perform.
//
// Roles are grouped into tiers, and the matrix is pure data: adding a role
// means pointing it at a tier, and adding an action means listing it under
// the tiers that should get it.
package permission

import (
	"fmt"
	"sort"

	"github.com/erazemk/garderoba/internal/model"
)

// Action is something a role may be allowed to do.
type Action string

// Actions.
const (
	CheckIn          Action = "checkIn"
	CheckOut         Action = "checkOut"
	ViewArchive      Action = "viewArchive"
	ViewClients      Action = "viewClients"
	ManageUsers      Action = "manageUsers"
	ManageRoles      Action = "manageRoles"
	ManageSchedule   Action = "manageSchedule"
	SendNotification Action = "sendNotification"
	AccessChat       Action = "accessChat"
)

// AllActions lists every known action.
var AllActions = []Action{
	CheckIn, CheckOut, ViewArchive, ViewClients, ManageUsers,
	ManageRoles, ManageSchedule, SendNotification, AccessChat,
}

func knownAction(a Action) bool {
	for _, k := range AllActions {
		if k == a {
			return true
		}
	}
	return false
}

// Tier names shipped in the default configuration.
const (
	TierOwner    = "owner"
	TierManager  = "manager"
	TierOperator = "operator"
	TierClient   = "client"
)

// DefaultTiers is the tier to action table used when none is configured.
var DefaultTiers = map[string][]Action{
	TierOwner: AllActions,
	TierManager: {
		CheckIn, CheckOut, ViewArchive, ViewClients,
		SendNotification, AccessChat, ManageSchedule,
	},
	TierOperator: {CheckIn, CheckOut, AccessChat},
	TierClient:   {},
}

// DefaultRoles assigns the stock roles to tiers.
var DefaultRoles = map[string]string{
	model.RoleCreator:    TierOwner,
	model.RoleSuperAdmin: TierOwner,
	model.RoleAdmin:      TierManager,
	model.RoleCashier:    TierOperator,
	model.RoleClient:     TierClient,
}

// Matrix answers isAllowed(role, action). It is immutable once built and
// safe for concurrent use.
type Matrix struct {
	allowed map[string]map[Action]struct{}
	tiers   map[string]string
}

// New builds a matrix from tier and role tables. Every role must point at
// a defined tier and every listed action must be known. The client role
// must not be granted any action.
func New(tiers map[string][]Action, roles map[string]string) (*Matrix, error) {
	m := &Matrix{
		allowed: make(map[string]map[Action]struct{}, len(roles)),
		tiers:   make(map[string]string, len(roles)),
	}
	for tier, actions := range tiers {
		for _, a := range actions {
			if !knownAction(a) {
				return nil, fmt.Errorf("tier %q: unknown action %q", tier, a)
			}
		}
	}
	for role, tier := range roles {
		actions, ok := tiers[tier]
		if !ok {
			return nil, fmt.Errorf("role %q: unknown tier %q", role, tier)
		}
		if role == model.RoleClient && len(actions) > 0 {
			return nil, fmt.Errorf("role %q may not be granted actions", role)
		}
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		m.allowed[role] = set
		m.tiers[role] = tier
	}
	return m, nil
}

// Default returns the matrix built from DefaultTiers and DefaultRoles.
func Default() *Matrix {
	m, err := New(DefaultTiers, DefaultRoles)
	if err != nil {
		panic(err)
	}
	return m
}

// IsAllowed reports whether role may perform action. Unknown roles are
// denied everything.
func (m *Matrix) IsAllowed(role string, action Action) bool {
	set, ok := m.allowed[role]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}

// Check returns a *model.PermissionDeniedError when role may not perform
// action.
func (m *Matrix) Check(role string, action Action) error {
	if m.IsAllowed(role, action) {
		return nil
	}
	return &model.PermissionDeniedError{Role: role, Action: string(action)}
}

// CheckGrant returns a *model.PermissionDeniedError when role holds any
// action that actor does not. Staff managers use it so they cannot hand out
// more than they have themselves.
func (m *Matrix) CheckGrant(actor, role string) error {
	for a := range m.allowed[role] {
		if !m.IsAllowed(actor, a) {
			return &model.PermissionDeniedError{Role: actor, Action: "grant " + string(a)}
		}
	}
	return nil
}

// HasRole reports whether role is configured.
func (m *Matrix) HasRole(role string) bool {
	_, ok := m.allowed[role]
	return ok
}

// Roles returns every configured role, sorted.
func (m *Matrix) Roles() []string {
	roles := make([]string, 0, len(m.allowed))
	for r := range m.allowed {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// Tier returns the tier a role belongs to.
func (m *Matrix) Tier(role string) string {
	return m.tiers[role]
}
