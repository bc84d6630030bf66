// Package staff manages staff accounts: provisioning, blocking and role
// changes.
package staff

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/permission"
	"github.com/erazemk/garderoba/internal/store"
)

// Service wraps the user store with permission checks.
type Service struct {
	db     *sql.DB
	matrix *permission.Matrix
	now    func() time.Time
	logger *slog.Logger
}

// NewService returns a Service. A nil now uses time.Now.
func NewService(db *sql.DB, matrix *permission.Matrix, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{db: db, matrix: matrix, now: now, logger: logger.With("service", "staff")}
}

// Provision creates an account without an actor. It is meant for the
// command line, where access to the database is the authorization.
func (s *Service) Provision(ctx context.Context, username, fullName, role string) (*model.User, error) {
	username = strings.TrimSpace(username)
	fullName = strings.TrimSpace(fullName)

	if err := model.ValidateUsername(username); err != nil {
		return nil, &model.ValidationError{Fields: map[string]string{"username": err.Error()}}
	}
	if err := s.checkStaffRole(role); err != nil {
		return nil, err
	}

	existing, err := store.GetUser(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user %q: %w", username, model.ErrAlreadyExists)
	}

	u, err := store.CreateUser(ctx, s.db, username, fullName, role, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user created", "username", username, "role", role)
	return u, nil
}

func (s *Service) checkStaffRole(role string) error {
	if role == model.RoleClient || !s.matrix.HasRole(role) {
		return fmt.Errorf("role %q: %w", role, model.ErrUnknownRole)
	}
	return nil
}

// Create provisions an account on behalf of actor. The new role may not
// hold any action the actor lacks.
func (s *Service) Create(ctx context.Context, actor model.Session, username, fullName, role string) (*model.User, error) {
	if err := s.matrix.Check(actor.Role, permission.ManageUsers); err != nil {
		return nil, err
	}
	if err := s.checkStaffRole(role); err != nil {
		return nil, err
	}
	if err := s.matrix.CheckGrant(actor.Role, role); err != nil {
		return nil, err
	}
	return s.Provision(ctx, username, fullName, role)
}

// List returns every staff account.
func (s *Service) List(ctx context.Context, actor model.Session) ([]model.User, error) {
	if err := s.matrix.Check(actor.Role, permission.ManageUsers); err != nil {
		return nil, err
	}
	return store.ListUsers(ctx, s.db)
}

// SetBlocked blocks or unblocks an account. Actors cannot block themselves.
func (s *Service) SetBlocked(ctx context.Context, actor model.Session, username string, blocked bool) error {
	if err := s.matrix.Check(actor.Role, permission.ManageUsers); err != nil {
		return err
	}
	if blocked && username == actor.Identifier {
		return &model.ValidationError{Fields: map[string]string{"username": "cannot block yourself"}}
	}
	return s.setBlocked(ctx, username, blocked)
}

// SetBlockedDirect is SetBlocked without an actor, for the command line.
func (s *Service) SetBlockedDirect(ctx context.Context, username string, blocked bool) error {
	return s.setBlocked(ctx, username, blocked)
}

func (s *Service) setBlocked(ctx context.Context, username string, blocked bool) error {
	ok, err := store.SetUserBlocked(ctx, s.db, username, blocked)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %q: %w", username, model.ErrNotFound)
	}
	s.logger.InfoContext(ctx, "user block changed", "username", username, "blocked", blocked)
	return nil
}

// SetRole moves an account to another role, under the same grant rule
// as Create.
func (s *Service) SetRole(ctx context.Context, actor model.Session, username, role string) error {
	if err := s.matrix.Check(actor.Role, permission.ManageRoles); err != nil {
		return err
	}
	if err := s.checkStaffRole(role); err != nil {
		return err
	}
	if err := s.matrix.CheckGrant(actor.Role, role); err != nil {
		return err
	}
	return s.SetRoleDirect(ctx, username, role)
}

// SetRoleDirect is SetRole without an actor, for the command line.
func (s *Service) SetRoleDirect(ctx context.Context, username, role string) error {
	if err := s.checkStaffRole(role); err != nil {
		return err
	}
	ok, err := store.UpdateUserRole(ctx, s.db, username, role)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %q: %w", username, model.ErrNotFound)
	}
	s.logger.InfoContext(ctx, "user role changed", "username", username, "role", role)
	return nil
}

// ListAll returns every account without an actor, for the command line.
func (s *Service) ListAll(ctx context.Context) ([]model.User, error) {
	return store.ListUsers(ctx, s.db)
}
