// Package ledger is the item custody state machine. It checks items in and
// out, enforces department capacity, issues pickup codes and keeps every
// record in the archive.
//
// Mutations are serialized by a mutex and each runs in a single database
// transaction, so a capacity check and the insert it guards commit together.
// Notifications are published only after commit.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/garderoba/internal/codegen"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/notify"
	"github.com/erazemk/garderoba/internal/permission"
	"github.com/erazemk/garderoba/internal/store"
)

// DefaultCodeAttempts is how many codes are drawn before giving up on
// finding one that is not in use.
const DefaultCodeAttempts = 16

// Recorder receives custody counters. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveCheckIn(dept model.Department, active int)
	ObserveCheckOut(dept model.Department, active int)
	ObserveRejection(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCheckIn(model.Department, int)  {}
func (nopRecorder) ObserveCheckOut(model.Department, int) {}
func (nopRecorder) ObserveRejection(string)               {}

// Ledger owns items, the archive and the client registry.
type Ledger struct {
	mu sync.Mutex

	db           *sql.DB
	matrix       *permission.Matrix
	limits       Limits
	codes        codegen.Generator
	codeAttempts int
	now          func() time.Time
	newID        func() string
	publisher    notify.Publisher
	recorder     Recorder
	logger       *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLimits overrides the department capacities.
func WithLimits(l Limits) Option {
	return func(lg *Ledger) { lg.limits = l }
}

// WithCodeGenerator replaces the pickup code source.
func WithCodeGenerator(g codegen.Generator) Option {
	return func(lg *Ledger) { lg.codes = g }
}

// WithCodeAttempts sets how many codes are tried per check-in.
func WithCodeAttempts(n int) Option {
	return func(lg *Ledger) {
		if n > 0 {
			lg.codeAttempts = n
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) { lg.now = now }
}

// WithIDGenerator replaces the item ID source.
func WithIDGenerator(f func() string) Option {
	return func(lg *Ledger) { lg.newID = f }
}

// WithPublisher sets where committed events are sent.
func WithPublisher(p notify.Publisher) Option {
	return func(lg *Ledger) { lg.publisher = p }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(lg *Ledger) { lg.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(lg *Ledger) { lg.logger = l }
}

// New returns a ledger over db. The schema must already be migrated.
func New(db *sql.DB, matrix *permission.Matrix, opts ...Option) (*Ledger, error) {
	lg := &Ledger{
		db:           db,
		matrix:       matrix,
		limits:       DefaultLimits(),
		codes:        codegen.Random{},
		codeAttempts: DefaultCodeAttempts,
		now:          time.Now,
		newID:        uuid.NewString,
		publisher:    notify.Discard{},
		recorder:     nopRecorder{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(lg)
	}
	if err := lg.limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid department limits: %w", err)
	}
	lg.logger = lg.logger.With("service", "ledger")
	return lg, nil
}

func (lg *Ledger) logOutcome(ctx context.Context, logger *slog.Logger, msg string, err error) {
	switch {
	case err == nil:
		logger.InfoContext(ctx, msg)
	case model.ErrorKind(err) == "internal":
		logger.ErrorContext(ctx, msg+" failed", "error", err, "error_kind", model.ErrorKind(err))
	default:
		logger.WarnContext(ctx, msg+" rejected", "error", err, "error_kind", model.ErrorKind(err))
	}
}

// authenticated rejects sessions whose role the matrix does not know.
func (lg *Ledger) authenticated(actor model.Session) error {
	if actor.Role == "" || !lg.matrix.HasRole(actor.Role) {
		return &model.PermissionDeniedError{Role: actor.Role, Action: "access the ledger"}
	}
	if actor.IsClient() && actor.Phone == "" {
		return &model.PermissionDeniedError{Role: actor.Role, Action: "access the ledger without a phone"}
	}
	return nil
}

// CheckIn puts a new item into custody and returns it with its pickup code.
func (lg *Ledger) CheckIn(ctx context.Context, actor model.Session, draft model.ItemDraft) (item *model.Item, err error) {
	logger := lg.logger.With("operation", "CheckIn", "actor", actor.Identifier, "department", draft.Department)
	defer func() {
		if item != nil {
			logger = logger.With("item_id", item.ID, "code", item.Code)
		}
		lg.logOutcome(ctx, logger, "check-in", err)
	}()

	if err = lg.matrix.Check(actor.Role, permission.CheckIn); err != nil {
		return nil, err
	}

	draft.Normalize()
	if err = draft.Validate(); err != nil {
		lg.recorder.ObserveRejection(model.ErrorKind(err))
		return nil, err
	}

	var active int
	item, active, err = lg.checkIn(ctx, actor, draft)
	if err != nil {
		lg.recorder.ObserveRejection(model.ErrorKind(err))
		return nil, err
	}

	lg.recorder.ObserveCheckIn(item.Department, active)
	lg.publisher.Publish(notify.CheckedIn(item))
	return item, nil
}

func (lg *Ledger) checkIn(ctx context.Context, actor model.Session, draft model.ItemDraft) (*model.Item, int, error) {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	now := lg.now().UTC()
	if draft.ExpectedReturnAt != nil && draft.ExpectedReturnAt.Before(now) {
		return nil, 0, &model.ValidationError{Fields: map[string]string{
			"expected_return_at": "must not be in the past",
		}}
	}

	tx, err := lg.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	limit := lg.limits[draft.Department]
	active, err := store.CountStored(ctx, tx, draft.Department)
	if err != nil {
		return nil, 0, err
	}
	if active >= limit {
		return nil, 0, &model.CapacityError{Department: draft.Department, Limit: limit}
	}

	code, err := lg.freeCode(ctx, tx)
	if err != nil {
		return nil, 0, err
	}

	if err := store.EnsureClient(ctx, tx, draft.ClientPhone, draft.ClientName, draft.ClientEmail, now); err != nil {
		return nil, 0, err
	}

	item := &model.Item{
		ID:               lg.newID(),
		Code:             code,
		Name:             draft.Name,
		Department:       draft.Department,
		ClientName:       draft.ClientName,
		ClientPhone:      draft.ClientPhone,
		ClientEmail:      draft.ClientEmail,
		DepositAmount:    draft.DepositAmount,
		ReturnAmount:     draft.ReturnAmount,
		Discount:         draft.Discount,
		DepositedAt:      now,
		ExpectedReturnAt: draft.ExpectedReturnAt,
		Status:           model.ItemStatusStored,
		CreatedBy:        actor.Identifier,
	}
	if err := store.InsertItem(ctx, tx, item); err != nil {
		return nil, 0, err
	}

	after, err := store.CountStored(ctx, tx, draft.Department)
	if err != nil {
		return nil, 0, err
	}
	if after > limit {
		panic(fmt.Sprintf("ledger: department %s holds %d items, limit %d", draft.Department, after, limit))
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("committing check-in: %w", err)
	}
	return item, after, nil
}

// freeCode draws codes until one is not held by a stored item.
func (lg *Ledger) freeCode(ctx context.Context, q store.Querier) (string, error) {
	for i := 0; i < lg.codeAttempts; i++ {
		code, err := lg.codes.NextCode()
		if err != nil {
			return "", err
		}
		taken, err := store.IsCodeActive(ctx, q, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		lg.logger.DebugContext(ctx, "pickup code collision", "attempt", i+1)
	}
	return "", model.ErrCodeSpaceExhausted
}

// CheckOut releases the stored item carrying code. Unknown codes and codes
// of items already released both yield model.ErrNotFound.
func (lg *Ledger) CheckOut(ctx context.Context, actor model.Session, code string) (item *model.Item, err error) {
	code = strings.TrimSpace(code)
	logger := lg.logger.With("operation", "CheckOut", "actor", actor.Identifier, "code", code)
	defer func() {
		if item != nil {
			logger = logger.With("item_id", item.ID)
		}
		lg.logOutcome(ctx, logger, "check-out", err)
	}()

	if err = lg.matrix.Check(actor.Role, permission.CheckOut); err != nil {
		return nil, err
	}
	if !codegen.Valid(code) {
		return nil, model.ErrNotFound
	}

	var active int
	item, active, err = lg.checkOut(ctx, code)
	if err != nil {
		return nil, err
	}

	lg.recorder.ObserveCheckOut(item.Department, active)
	lg.publisher.Publish(notify.CheckedOut(item, actor.Identifier))
	return item, nil
}

func (lg *Ledger) checkOut(ctx context.Context, code string) (*model.Item, int, error) {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	tx, err := lg.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetStoredItemByCode(ctx, tx, code)
	if err != nil {
		return nil, 0, err
	}
	if item == nil {
		return nil, 0, model.ErrNotFound
	}

	returnedAt := lg.now().UTC()
	if returnedAt.Before(item.DepositedAt) {
		returnedAt = item.DepositedAt
	}
	ok, err := store.MarkReturned(ctx, tx, item.ID, returnedAt)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, model.ErrNotFound
	}
	item.Status = model.ItemStatusReturned
	item.ReturnedAt = &returnedAt

	active, err := store.CountStored(ctx, tx, item.Department)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("committing check-out: %w", err)
	}
	return item, active, nil
}
