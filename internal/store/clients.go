package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/garderoba/internal/model"
)

// EnsureClient registers a client on first sight. An existing record is
// left untouched: the first registration wins.
func EnsureClient(ctx context.Context, q Querier, phone, name, email string, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO clients (phone, name, email, created_at) VALUES (?, ?, ?, ?)`,
		phone, name, email, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("registering client: %w", err)
	}
	return nil
}

// GetClient returns a client by phone, or nil if none is registered.
func GetClient(ctx context.Context, q Querier, phone string) (*model.Client, error) {
	var (
		c         model.Client
		createdAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT phone, name, email, bonus_points, created_at FROM clients WHERE phone = ?`, phone,
	).Scan(&c.Phone, &c.Name, &c.Email, &c.BonusPoints, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting client: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClients returns all registered clients ordered by name.
func ListClients(ctx context.Context, q Querier) ([]model.Client, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT phone, name, email, bonus_points, created_at FROM clients ORDER BY name, phone`)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	defer rows.Close()

	clients := []model.Client{}
	for rows.Next() {
		var (
			c         model.Client
			createdAt string
		)
		if err := rows.Scan(&c.Phone, &c.Name, &c.Email, &c.BonusPoints, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning client: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
