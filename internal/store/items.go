package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/garderoba/internal/model"
)

const itemColumns = `id, code, name, department, client_name, client_phone, client_email,
	deposit_amount, return_amount, discount, deposited_at, expected_return_at, returned_at,
	status, created_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	var (
		item                   model.Item
		depositedAt            string
		expectedAt, returnedAt sql.NullString
	)
	err := row.Scan(&item.ID, &item.Code, &item.Name, &item.Department, &item.ClientName,
		&item.ClientPhone, &item.ClientEmail, &item.DepositAmount, &item.ReturnAmount,
		&item.Discount, &depositedAt, &expectedAt, &returnedAt, &item.Status, &item.CreatedBy)
	if err != nil {
		return nil, err
	}
	if item.DepositedAt, err = parseTime(depositedAt); err != nil {
		return nil, err
	}
	if item.ExpectedReturnAt, err = parseNullTime(expectedAt); err != nil {
		return nil, err
	}
	if item.ReturnedAt, err = parseNullTime(returnedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// InsertItem stores a new custody record exactly as given.
func InsertItem(ctx context.Context, q Querier, item *model.Item) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Code, item.Name, item.Department, item.ClientName, item.ClientPhone,
		item.ClientEmail, item.DepositAmount, item.ReturnAmount, item.Discount,
		formatTime(item.DepositedAt), formatNullTime(item.ExpectedReturnAt),
		formatNullTime(item.ReturnedAt), item.Status, item.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, q Querier, id string) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetStoredItemByCode returns the item currently in custody under code, or
// nil if no stored item carries it.
func GetStoredItemByCode(ctx context.Context, q Querier, code string) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE code = ? AND status = 'stored'`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item by code: %w", err)
	}
	return item, nil
}

// IsCodeActive reports whether a stored item already uses code.
func IsCodeActive(ctx context.Context, q Querier, code string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE code = ? AND status = 'stored'`, code,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking code: %w", err)
	}
	return count > 0, nil
}

// MarkReturned moves a stored item to returned. It reports false if the item
// was not in the stored state.
func MarkReturned(ctx context.Context, q Querier, id string, returnedAt time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET status = 'returned', returned_at = ?
		 WHERE id = ? AND status = 'stored'`,
		formatTime(returnedAt), id,
	)
	if err != nil {
		return false, fmt.Errorf("marking item returned: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking item returned: %w", err)
	}
	return n == 1, nil
}

// ListStoredItems returns items in custody in deposit order. A non-empty
// phone restricts the result to that client's items.
func ListStoredItems(ctx context.Context, q Querier, phone string) ([]model.Item, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if phone != "" {
		rows, err = q.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items
			 WHERE status = 'stored' AND client_phone = ?
			 ORDER BY deposited_at, rowid`, phone)
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items
			 WHERE status = 'stored'
			 ORDER BY deposited_at, rowid`)
	}
	if err != nil {
		return nil, fmt.Errorf("listing stored items: %w", err)
	}
	return scanItems(rows)
}

// ListArchive returns every custody record ever created in creation order.
// A non-empty status restricts the result to records in that state.
func ListArchive(ctx context.Context, q Querier, status model.ItemStatus) ([]model.Item, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = q.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items WHERE status = ?
			 ORDER BY deposited_at, rowid`, status)
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items ORDER BY deposited_at, rowid`)
	}
	if err != nil {
		return nil, fmt.Errorf("listing archive: %w", err)
	}
	return scanItems(rows)
}

// GetLatestItemByCode returns the record that most recently carried code:
// the stored one if any, otherwise the latest deposit. It returns nil if
// the code was never issued.
func GetLatestItemByCode(ctx context.Context, q Querier, code string) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE code = ?
		 ORDER BY status = 'stored' DESC, deposited_at DESC, rowid DESC
		 LIMIT 1`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up code: %w", err)
	}
	return item, nil
}
