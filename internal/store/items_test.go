package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/model"
)

func newStoredItem(id, code, phone string, dept model.Department, at time.Time) *model.Item {
	return &model.Item{
		ID:          id,
		Code:        code,
		Name:        "Coat " + id,
		Department:  dept,
		ClientName:  "Client " + phone,
		ClientPhone: phone,
		DepositedAt: at,
		Status:      model.ItemStatusStored,
		CreatedBy:   "cashier",
	}
}

func insertTestItem(t *testing.T, q Querier, item *model.Item) {
	t.Helper()
	ctx := context.Background()
	if err := EnsureClient(ctx, q, item.ClientPhone, item.ClientName, "", item.DepositedAt); err != nil {
		t.Fatalf("EnsureClient: %v", err)
	}
	if err := InsertItem(ctx, q, item); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
}

func TestInsertAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	expected := testNow.Add(48 * time.Hour)
	item := newStoredItem("i1", "123456", "555", model.DepartmentDocuments, testNow)
	item.Discount = 15
	item.ExpectedReturnAt = &expected
	insertTestItem(t, database, item)

	got, err := GetItem(ctx, database, "i1")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Code != "123456" {
		t.Errorf("expected code '123456', got %q", got.Code)
	}
	if !got.DepositedAt.Equal(testNow) {
		t.Errorf("expected deposited_at %v, got %v", testNow, got.DepositedAt)
	}
	if got.ExpectedReturnAt == nil || !got.ExpectedReturnAt.Equal(expected) {
		t.Errorf("expected expected_return_at %v, got %v", expected, got.ExpectedReturnAt)
	}
	if got.ReturnedAt != nil {
		t.Errorf("expected no returned_at, got %v", got.ReturnedAt)
	}
	if got.Discount != 15 {
		t.Errorf("expected discount 15, got %d", got.Discount)
	}

	missing, err := GetItem(ctx, database, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil item, got %+v, %v", missing, err)
	}
}

func TestMarkReturnedOnlyOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	insertTestItem(t, database, newStoredItem("i1", "111111", "555", model.DepartmentOther, testNow))

	ok, err := MarkReturned(ctx, database, "i1", testNow.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("MarkReturned: ok=%v err=%v", ok, err)
	}
	ok, err = MarkReturned(ctx, database, "i1", testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("MarkReturned: %v", err)
	}
	if ok {
		t.Error("expected second return to report false")
	}

	got, _ := GetItem(ctx, database, "i1")
	if got.Status != model.ItemStatusReturned {
		t.Errorf("expected status 'returned', got %q", got.Status)
	}
	if got.ReturnedAt == nil || !got.ReturnedAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("expected returned_at to keep first value, got %v", got.ReturnedAt)
	}

	stored, _ := GetStoredItemByCode(ctx, database, "111111")
	if stored != nil {
		t.Error("expected returned item not to resolve by code")
	}
}

func TestListStoredItemsOrderAndFilter(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		phone := "555"
		if i == 1 {
			phone = "777"
		}
		item := newStoredItem(fmt.Sprintf("i%d", i), fmt.Sprintf("00000%d", i), phone, model.DepartmentPhotos, testNow.Add(time.Duration(i)*time.Millisecond))
		insertTestItem(t, database, item)
	}

	all, err := ListStoredItems(ctx, database, "")
	if err != nil {
		t.Fatalf("ListStoredItems: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 items, got %d", len(all))
	}
	for i, item := range all {
		if item.ID != fmt.Sprintf("i%d", i) {
			t.Errorf("expected deposit order, position %d got %q", i, item.ID)
		}
	}

	mine, _ := ListStoredItems(ctx, database, "555")
	if len(mine) != 2 {
		t.Errorf("expected 2 items for 555, got %d", len(mine))
	}
	for _, item := range mine {
		if item.ClientPhone != "555" {
			t.Errorf("expected only 555's items, got %q", item.ClientPhone)
		}
	}
}

func TestListArchive(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	insertTestItem(t, database, newStoredItem("a", "100000", "555", model.DepartmentOther, testNow))
	insertTestItem(t, database, newStoredItem("b", "200000", "555", model.DepartmentOther, testNow.Add(time.Second)))
	MarkReturned(ctx, database, "a", testNow.Add(time.Minute))

	all, err := ListArchive(ctx, database, "")
	if err != nil {
		t.Fatalf("ListArchive: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 archived items, got %d", len(all))
	}
	if all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("expected creation order, got %q, %q", all[0].ID, all[1].ID)
	}

	returned, _ := ListArchive(ctx, database, model.ItemStatusReturned)
	if len(returned) != 1 || returned[0].ID != "a" {
		t.Errorf("expected only 'a' returned, got %+v", returned)
	}
}

func TestGetLatestItemByCode(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	insertTestItem(t, database, newStoredItem("old", "777777", "555", model.DepartmentOther, testNow))
	MarkReturned(ctx, database, "old", testNow.Add(time.Minute))

	got, err := GetLatestItemByCode(ctx, database, "777777")
	if err != nil {
		t.Fatalf("GetLatestItemByCode: %v", err)
	}
	if got == nil || got.ID != "old" {
		t.Fatalf("expected returned record, got %+v", got)
	}

	insertTestItem(t, database, newStoredItem("new", "777777", "555", model.DepartmentOther, testNow.Add(time.Hour)))
	got, _ = GetLatestItemByCode(ctx, database, "777777")
	if got.ID != "new" {
		t.Errorf("expected stored record to win, got %q", got.ID)
	}

	none, _ := GetLatestItemByCode(ctx, database, "000001")
	if none != nil {
		t.Errorf("expected nil for unknown code, got %+v", none)
	}
}

func TestIsCodeActive(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	insertTestItem(t, database, newStoredItem("a", "424242", "555", model.DepartmentOther, testNow))

	active, err := IsCodeActive(ctx, database, "424242")
	if err != nil || !active {
		t.Fatalf("expected code active, got %v, %v", active, err)
	}
	MarkReturned(ctx, database, "a", testNow)
	active, _ = IsCodeActive(ctx, database, "424242")
	if active {
		t.Error("expected code to be free after return")
	}
}
