package store

import (
	"context"
	"fmt"

	"github.com/erazemk/garderoba/internal/model"
)

// CountStored returns how many items are in custody in a department.
func CountStored(ctx context.Context, q Querier, dept model.Department) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE department = ? AND status = 'stored'`, dept,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting stored items: %w", err)
	}
	return count, nil
}

// CountStoredByDepartment returns stored-item counts for every department
// that has at least one item in custody.
func CountStoredByDepartment(ctx context.Context, q Querier) (map[model.Department]int, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT department, COUNT(*) FROM items WHERE status = 'stored' GROUP BY department`)
	if err != nil {
		return nil, fmt.Errorf("counting stored items: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Department]int)
	for rows.Next() {
		var (
			dept  model.Department
			count int
		)
		if err := rows.Scan(&dept, &count); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[dept] = count
	}
	return counts, rows.Err()
}
