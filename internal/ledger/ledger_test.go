package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/garderoba/internal/codegen"
	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/notify"
	"github.com/erazemk/garderoba/internal/permission"
	"github.com/erazemk/garderoba/internal/store"
	"github.com/erazemk/garderoba/internal/testutil"
)

var (
	cashier = model.Session{Identifier: "ana", Role: model.RoleCashier}
	admin   = model.Session{Identifier: "bor", Role: model.RoleAdmin}
	creator = model.Session{Identifier: "cene", Role: model.RoleCreator}
)

func clientSession(phone string) model.Session {
	return model.Session{Identifier: phone, Role: model.RoleClient, Phone: phone}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *capturePublisher) Publish(ev notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) kinds() []notify.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Kind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	ledger *Ledger
	clock  *testutil.Clock
	pub    *capturePublisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := testutil.NewClock(time.Time{})
	pub := &capturePublisher{}
	base := []Option{WithClock(clock.Now), WithPublisher(pub)}
	lg, err := New(db.NewTestDB(t), permission.Default(), append(base, opts...)...)
	require.NoError(t, err)
	return &fixture{ledger: lg, clock: clock, pub: pub}
}

func draft(dept model.Department, phone string) model.ItemDraft {
	return model.ItemDraft{
		Name:          "Item for " + phone,
		Department:    dept,
		ClientName:    "Client " + phone,
		ClientPhone:   phone,
		DepositAmount: 200,
		ReturnAmount:  100,
	}
}

func TestCheckInCreatesStoredItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expected := testutil.Epoch.Add(72 * time.Hour)
	d := draft(model.DepartmentDocuments, "555")
	d.ClientEmail = "ana@example.com"
	d.Discount = 10
	d.ExpectedReturnAt = &expected

	item, err := f.ledger.CheckIn(ctx, cashier, d)
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID)
	assert.True(t, codegen.Valid(item.Code), "code %q", item.Code)
	assert.Equal(t, model.ItemStatusStored, item.Status)
	assert.Equal(t, "ana", item.CreatedBy)
	assert.True(t, item.DepositedAt.Equal(testutil.Epoch))
	assert.Nil(t, item.ReturnedAt)
	assert.Equal(t, 10, item.Discount)

	client, err := store.GetClient(ctx, f.ledger.db, "555")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "Client 555", client.Name)
	assert.Equal(t, 0, client.BonusPoints)

	assert.Equal(t, []notify.Kind{notify.KindCheckedIn}, f.pub.kinds())
}

func TestCheckInValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.CheckIn(context.Background(), cashier, model.ItemDraft{Department: "attic"})
	require.ErrorIs(t, err, model.ErrValidation)

	past := testutil.Epoch.Add(-time.Hour)
	d := draft(model.DepartmentOther, "555")
	d.ExpectedReturnAt = &past
	_, err = f.ledger.CheckIn(context.Background(), cashier, d)

	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "expected_return_at")
	assert.Empty(t, f.pub.kinds())
}

func TestClientCannotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CheckIn(ctx, clientSession("555"), draft(model.DepartmentOther, "555"))
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	item, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, "555"))
	require.NoError(t, err)

	_, err = f.ledger.CheckOut(ctx, clientSession("555"), item.Code)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	_, err = f.ledger.ListArchive(ctx, clientSession("555"))
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}

func TestCapacityScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 99; i++ {
		_, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentDocuments, fmt.Sprintf("p%d", i)))
		require.NoError(t, err)
	}

	a, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentDocuments, "A"))
	require.NoError(t, err)
	assert.Equal(t, 100, activeIn(t, f, model.DepartmentDocuments))

	archiveBefore, err := f.ledger.ListArchive(ctx, admin)
	require.NoError(t, err)

	_, err = f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentDocuments, "B"))
	var ce *model.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 100, ce.Limit)
	assert.Equal(t, model.DepartmentDocuments, ce.Department)

	archiveAfter, _ := f.ledger.ListArchive(ctx, admin)
	assert.Len(t, archiveAfter, len(archiveBefore), "a refused check-in must not change state")
	missing, _ := store.GetClient(ctx, f.ledger.db, "B")
	assert.Nil(t, missing, "a refused check-in must not register the client")

	// Other departments are unaffected.
	_, err = f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentPhotos, "B"))
	require.NoError(t, err)

	_, err = f.ledger.CheckOut(ctx, cashier, a.Code)
	require.NoError(t, err)
	assert.Equal(t, 99, activeIn(t, f, model.DepartmentDocuments))

	_, err = f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentDocuments, "C"))
	assert.NoError(t, err)
}

func activeIn(t *testing.T, f *fixture, d model.Department) int {
	t.Helper()
	items, err := f.ledger.ListActive(context.Background(), admin, ActiveFilter{Department: d})
	require.NoError(t, err)
	return len(items)
}

func TestCheckOutScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CheckOut(ctx, cashier, "123456")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.ledger.CheckOut(ctx, cashier, "not a code")
	assert.ErrorIs(t, err, model.ErrNotFound)

	item, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentPhotos, "555"))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	out, err := f.ledger.CheckOut(ctx, cashier, " "+item.Code+" ")
	require.NoError(t, err)
	assert.Equal(t, item.ID, out.ID)
	assert.Equal(t, model.ItemStatusReturned, out.Status)
	require.NotNil(t, out.ReturnedAt)
	assert.True(t, out.ReturnedAt.Equal(testutil.Epoch.Add(time.Hour)))

	_, err = f.ledger.CheckOut(ctx, cashier, item.Code)
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.Equal(t, []notify.Kind{notify.KindCheckedIn, notify.KindCheckedOut}, f.pub.kinds())
}

func TestReturnedAtNeverPrecedesDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, "555"))
	require.NoError(t, err)

	f.clock.Set(testutil.Epoch.Add(-time.Minute))
	out, err := f.ledger.CheckOut(ctx, cashier, item.Code)
	require.NoError(t, err)
	assert.False(t, out.ReturnedAt.Before(out.DepositedAt))
}

func TestCodeIsReusableAfterReturn(t *testing.T) {
	codes := []string{"111111", "111111", "222222"}
	var mu sync.Mutex
	gen := codegen.Func(func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return c, nil
	})
	f := newFixture(t, WithCodeGenerator(gen))
	ctx := context.Background()

	first, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, "1"))
	require.NoError(t, err)
	assert.Equal(t, "111111", first.Code)

	// 111111 is taken, so the ledger draws again.
	second, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, "2"))
	require.NoError(t, err)
	assert.Equal(t, "222222", second.Code)

	_, err = f.ledger.CheckOut(ctx, cashier, "111111")
	require.NoError(t, err)

	codes = []string{"111111"}
	third, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, "3"))
	require.NoError(t, err)
	assert.Equal(t, "111111", third.Code)
}

func TestCodeSpaceExhausted(t *testing.T) {
	gen := codegen.Func(func() (string, error) { return "000000", nil })
	f := newFixture(t, WithCodeGenerator(gen), WithCodeAttempts(4))
	ctx := context.Background()

	_, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, "1"))
	require.NoError(t, err)

	_, err = f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, "2"))
	assert.ErrorIs(t, err, model.ErrCodeSpaceExhausted)
}

func TestClientFirstWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := draft(model.DepartmentOther, "555")
	d.ClientName = "Ana"
	_, err := f.ledger.CheckIn(ctx, cashier, d)
	require.NoError(t, err)

	d.ClientName = "Not Ana"
	second, err := f.ledger.CheckIn(ctx, cashier, d)
	require.NoError(t, err)
	assert.Equal(t, "Not Ana", second.ClientName, "the item keeps what was typed")

	client, _ := store.GetClient(ctx, f.ledger.db, "555")
	assert.Equal(t, "Ana", client.Name)
}

func TestClientSeesOnlyOwnItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, "111"))
		require.NoError(t, err)
		_, err = f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentPhotos, "222"))
		require.NoError(t, err)
	}

	for _, phone := range []string{"111", "222"} {
		// The filter asks for the other client's phone; it must be ignored.
		items, err := f.ledger.ListActive(ctx, clientSession(phone), ActiveFilter{ClientPhone: "someone-else"})
		require.NoError(t, err)
		assert.Len(t, items, 3)
		for _, it := range items {
			assert.Equal(t, phone, it.ClientPhone)
		}
	}

	all, err := f.ledger.ListActive(ctx, cashier, ActiveFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	byPhone, _ := f.ledger.ListActive(ctx, cashier, ActiveFilter{ClientPhone: "222"})
	assert.Len(t, byPhone, 3)

	_, err = f.ledger.ListActive(ctx, model.Session{Role: model.RoleClient}, ActiveFilter{})
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	_, err = f.ledger.ListActive(ctx, model.Session{Role: "ghost"}, ActiveFilter{})
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}

func TestArchiveIsSupersetAndGrows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var codes []string
	prev := 0
	for i := 0; i < 5; i++ {
		item, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, fmt.Sprint(i)))
		require.NoError(t, err)
		codes = append(codes, item.Code)
		f.clock.Advance(time.Second)
		assertArchiveConsistent(t, f, &prev)
	}
	for _, c := range codes[:3] {
		_, err := f.ledger.CheckOut(ctx, cashier, c)
		require.NoError(t, err)
		assertArchiveConsistent(t, f, &prev)
	}

	archive, _ := f.ledger.ListArchive(ctx, admin)
	for _, it := range archive {
		assert.Equal(t, it.Status == model.ItemStatusReturned, it.ReturnedAt != nil)
	}
}

func assertArchiveConsistent(t *testing.T, f *fixture, prev *int) {
	t.Helper()
	ctx := context.Background()

	archive, err := f.ledger.ListArchive(ctx, admin)
	require.NoError(t, err)
	active, err := f.ledger.ListActive(ctx, admin, ActiveFilter{})
	require.NoError(t, err)

	ids := make(map[string]bool, len(archive))
	for _, it := range archive {
		ids[it.ID] = true
	}
	for _, it := range active {
		assert.True(t, ids[it.ID], "active item %s missing from archive", it.ID)
	}
	assert.GreaterOrEqual(t, len(archive), *prev)
	*prev = len(archive)
}

func TestConcurrentCheckInsRespectCapacity(t *testing.T) {
	limits := DefaultLimits()
	limits[model.DepartmentPhotos] = 5
	f := newFixture(t, WithLimits(limits))
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentPhotos, fmt.Sprint(i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, model.ErrCapacityExceeded):
				full++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, full)
	assert.Equal(t, 5, activeIn(t, f, model.DepartmentPhotos))
}

func TestConcurrentCheckOutReleasesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, "555"))
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.CheckOut(ctx, admin, item.Code); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
}

func TestLookupCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentOther, "555"))
	require.NoError(t, err)

	got, err := f.ledger.LookupCode(ctx, clientSession("555"), item.Code)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	_, err = f.ledger.LookupCode(ctx, clientSession("777"), item.Code)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.ledger.CheckOut(ctx, cashier, item.Code)
	require.NoError(t, err)
	got, err = f.ledger.LookupCode(ctx, cashier, item.Code)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusReturned, got.Status)

	_, err = f.ledger.LookupCode(ctx, cashier, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOccupancyAndClients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentPhotos, "1"))
	f.ledger.CheckIn(ctx, cashier, draft(model.DepartmentPhotos, "2"))

	occ, err := f.ledger.Occupancy(ctx, clientSession("1"))
	require.NoError(t, err)
	assert.Equal(t, []model.Occupancy{
		{Department: model.DepartmentDocuments, Active: 0, Limit: 100},
		{Department: model.DepartmentPhotos, Active: 2, Limit: 100},
		{Department: model.DepartmentOther, Active: 0, Limit: 1000},
	}, occ)

	_, err = f.ledger.ListClients(ctx, cashier)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	clients, err := f.ledger.ListClients(ctx, creator)
	require.NoError(t, err)
	assert.Len(t, clients, 2)
}

func TestLimitsValidation(t *testing.T) {
	bad := DefaultLimits()
	bad[model.DepartmentOther] = MaxOtherLimit + 1
	_, err := New(db.NewTestDB(t), permission.Default(), WithLimits(bad))
	assert.Error(t, err)

	missing := Limits{model.DepartmentDocuments: 1}
	assert.Error(t, missing.Validate())

	assert.NoError(t, DefaultLimits().Validate())
}
