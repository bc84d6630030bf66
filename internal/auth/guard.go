package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// Lockout defaults.
const (
	DefaultMaxAttempts     = 3
	DefaultLockoutDuration = 90 * time.Second
)

// Scope decides which failed attempts count against each other.
type Scope string

const (
	// ScopeGlobal shares one counter across every staff login.
	ScopeGlobal Scope = "global"
	// ScopeIdentity keeps a counter per (role, identifier) pair.
	ScopeIdentity Scope = "identity"
)

// Directory resolves login identifiers to staff accounts and clients.
type Directory interface {
	LookupUser(ctx context.Context, username string) (*model.User, error)
	LookupClient(ctx context.Context, phone string) (*model.Client, error)
}

// DBDirectory is a Directory backed by the store package.
type DBDirectory struct {
	DB store.Querier
}

func (d DBDirectory) LookupUser(ctx context.Context, username string) (*model.User, error) {
	return store.GetUser(ctx, d.DB, username)
}

func (d DBDirectory) LookupClient(ctx context.Context, phone string) (*model.Client, error) {
	return store.GetClient(ctx, d.DB, phone)
}

// LoginObserver is told the outcome of every login attempt.
type LoginObserver interface {
	ObserveLogin(result string)
}

type attemptRecord struct {
	count       int
	lastFailure time.Time
	lockedUntil time.Time
}

// LockoutStatus is a snapshot of one attempt counter.
type LockoutStatus struct {
	FailedAttempts int       `json:"failed_attempts"`
	Locked         bool      `json:"locked"`
	LockedUntil    time.Time `json:"locked_until,omitzero"`
}

// Guard validates logins and enforces the failed-attempt lockout. Attempt
// counters are only read and updated under the mutex; directory lookups and
// secret checks run outside it.
type Guard struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord

	dir             Directory
	secrets         *SecretStore
	maxAttempts     int
	lockoutDuration time.Duration
	scope           Scope
	now             func() time.Time
	logger          *slog.Logger
	observer        LoginObserver
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithMaxAttempts sets how many failures trigger a lockout.
func WithMaxAttempts(n int) GuardOption {
	return func(g *Guard) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithLockoutDuration sets how long a lockout lasts.
func WithLockoutDuration(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.lockoutDuration = d
		}
	}
}

// WithScope sets how attempts are grouped.
func WithScope(s Scope) GuardOption {
	return func(g *Guard) {
		if s == ScopeGlobal || s == ScopeIdentity {
			g.scope = s
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithObserver registers a login outcome observer.
func WithObserver(o LoginObserver) GuardOption {
	return func(g *Guard) {
		g.observer = o
	}
}

// NewGuard returns a Guard that resolves identities through dir and checks
// staff credentials against secrets.
func NewGuard(dir Directory, secrets *SecretStore, opts ...GuardOption) *Guard {
	g := &Guard{
		attempts:        make(map[string]*attemptRecord),
		dir:             dir,
		secrets:         secrets,
		maxAttempts:     DefaultMaxAttempts,
		lockoutDuration: DefaultLockoutDuration,
		scope:           ScopeGlobal,
		now:             time.Now,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("service", "guard")
	return g
}

func (g *Guard) key(role, identifier string) string {
	if g.scope == ScopeIdentity {
		return role + ":" + identifier
	}
	return ""
}

func (g *Guard) record(key string) *attemptRecord {
	rec, ok := g.attempts[key]
	if !ok {
		rec = &attemptRecord{}
		g.attempts[key] = rec
	}
	return rec
}

// checkLocked returns a *model.LockedOutError while key is locked out and
// drops the record once its lockout has expired. Callers hold g.mu.
func (g *Guard) checkLocked(key string, now time.Time) error {
	rec, ok := g.attempts[key]
	if !ok || rec.lockedUntil.IsZero() {
		return nil
	}
	if now.Before(rec.lockedUntil) {
		return &model.LockedOutError{Until: rec.lockedUntil, Remaining: rec.lockedUntil.Sub(now)}
	}
	delete(g.attempts, key)
	return nil
}

// remaining reports how many failures key may still make. Callers hold g.mu.
func (g *Guard) remaining(key string) int {
	if rec, ok := g.attempts[key]; ok {
		return g.maxAttempts - rec.count
	}
	return g.maxAttempts
}

// AttemptLogin authenticates identifier under role.
//
// Staff roles need an existing, unblocked account holding that role and the
// role's shared secret. The client role needs only a registered phone.
// Failed staff attempts count toward lockout; while locked out every
// attempt fails with *model.LockedOutError without checking credentials.
func (g *Guard) AttemptLogin(ctx context.Context, role, identifier, credential string) (session model.Session, err error) {
	logger := g.logger.With("operation", "AttemptLogin", "role", role, "identifier", identifier)
	defer func() {
		g.observe(err)
		switch {
		case err == nil:
			logger.InfoContext(ctx, "login succeeded")
		case model.ErrorKind(err) == "internal":
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", model.ErrorKind(err))
		default:
			logger.WarnContext(ctx, "login rejected", "error", err, "error_kind", model.ErrorKind(err))
		}
	}()

	key := g.key(role, identifier)

	g.mu.Lock()
	err = g.checkLocked(key, g.now())
	left := g.remaining(key)
	g.mu.Unlock()
	if err != nil {
		return
	}

	if role == model.RoleClient {
		return g.loginClient(ctx, identifier, left)
	}

	var user *model.User
	user, err = g.dir.LookupUser(ctx, identifier)
	if err != nil {
		err = fmt.Errorf("looking up user: %w", err)
		return
	}

	// The secret is checked even for unknown users so both paths cost the same.
	verified := g.secrets.Verify(role, credential)

	g.mu.Lock()
	defer g.mu.Unlock()

	// Another attempt may have locked us out while the secret was checked.
	now := g.now()
	if err = g.checkLocked(key, now); err != nil {
		return
	}
	if user == nil || user.Role != role || !verified {
		err = g.fail(key, now)
		return
	}
	if user.IsBlocked {
		err = model.ErrAccountBlocked
		return
	}

	delete(g.attempts, key)
	session = model.Session{
		Identifier: user.Username,
		Role:       user.Role,
		Name:       user.FullName,
		IssuedAt:   now,
	}
	return
}

// loginClient never touches the attempt counter.
func (g *Guard) loginClient(ctx context.Context, phone string, remaining int) (model.Session, error) {
	client, err := g.dir.LookupClient(ctx, phone)
	if err != nil {
		return model.Session{}, fmt.Errorf("looking up client: %w", err)
	}
	if client == nil {
		return model.Session{}, &model.InvalidCredentialsError{RemainingAttempts: remaining}
	}
	return model.Session{
		Identifier: client.Phone,
		Role:       model.RoleClient,
		Name:       client.Name,
		Phone:      client.Phone,
		IssuedAt:   g.now(),
	}, nil
}

// fail counts a failed staff attempt. Callers hold g.mu.
func (g *Guard) fail(key string, now time.Time) error {
	g.prune(now)

	rec := g.record(key)
	rec.count++
	rec.lastFailure = now
	if rec.count >= g.maxAttempts {
		rec.lockedUntil = now.Add(g.lockoutDuration)
		g.logger.Warn("login locked out", "until", rec.lockedUntil, "attempts", rec.count)
		return &model.InvalidCredentialsError{RemainingAttempts: 0}
	}
	return &model.InvalidCredentialsError{RemainingAttempts: g.maxAttempts - rec.count}
}

// prune drops records whose lockout has expired and unlocked records with
// no failure in the last two lockout windows. Callers hold g.mu.
func (g *Guard) prune(now time.Time) int {
	n := 0
	for key, rec := range g.attempts {
		expired := !rec.lockedUntil.IsZero() && !now.Before(rec.lockedUntil)
		stale := rec.lockedUntil.IsZero() && now.Sub(rec.lastFailure) > 2*g.lockoutDuration
		if expired || stale {
			delete(g.attempts, key)
			n++
		}
	}
	return n
}

func (g *Guard) observe(err error) {
	if g.observer == nil {
		return
	}
	switch {
	case err == nil:
		g.observer.ObserveLogin("success")
	case errors.Is(err, model.ErrLockedOut):
		g.observer.ObserveLogin("locked_out")
	case errors.Is(err, model.ErrAccountBlocked):
		g.observer.ObserveLogin("blocked")
	case errors.Is(err, model.ErrInvalidCredentials):
		g.observer.ObserveLogin("invalid")
	default:
		g.observer.ObserveLogin("error")
	}
}

// Status reports the attempt counter that a login for (role, identifier)
// would use. With the global scope the arguments are ignored.
func (g *Guard) Status(role, identifier string) LockoutStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.attempts[g.key(role, identifier)]
	if !ok {
		return LockoutStatus{}
	}
	now := g.now()
	if !rec.lockedUntil.IsZero() && !now.Before(rec.lockedUntil) {
		return LockoutStatus{}
	}
	return LockoutStatus{
		FailedAttempts: rec.count,
		Locked:         !rec.lockedUntil.IsZero(),
		LockedUntil:    rec.lockedUntil,
	}
}

// RotateSecrets replaces the role secrets.
func (g *Guard) RotateSecrets(secrets map[string]string) error {
	if err := g.secrets.Replace(secrets); err != nil {
		return err
	}
	g.logger.Info("role secrets rotated", "roles", len(secrets))
	return nil
}
