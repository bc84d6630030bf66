package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/garderoba/internal/model"
)

// CreateUser creates a new staff account.
func CreateUser(ctx context.Context, q Querier, username, fullName, role string, now time.Time) (*model.User, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (username, role, full_name, created_at) VALUES (?, ?, ?, ?)`,
		username, role, fullName, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return GetUser(ctx, q, username)
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		createdAt string
	)
	if err := row.Scan(&u.Username, &u.Role, &u.FullName, &u.IsBlocked, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = t
	return &u, nil
}

// GetUser returns a user by username, or nil if none exists.
func GetUser(ctx context.Context, q Querier, username string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT username, role, full_name, is_blocked, created_at
		 FROM users WHERE username = ?`, username,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// ListUsers returns all staff accounts ordered by username.
func ListUsers(ctx context.Context, q Querier) ([]model.User, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT username, role, full_name, is_blocked, created_at
		 FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserRole changes a user's role. It reports false if the user does
// not exist.
func UpdateUserRole(ctx context.Context, q Querier, username, role string) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE username = ?`, role, username,
	)
	if err != nil {
		return false, fmt.Errorf("updating user role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating user role: %w", err)
	}
	return n == 1, nil
}

// SetUserBlocked blocks or unblocks a user. It reports false if the user
// does not exist.
func SetUserBlocked(ctx context.Context, q Querier, username string, blocked bool) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET is_blocked = ? WHERE username = ?`, blocked, username,
	)
	if err != nil {
		return false, fmt.Errorf("setting user blocked: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting user blocked: %w", err)
	}
	return n == 1, nil
}
