package ledger

import (
	"context"
	"strings"

	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/permission"
	"github.com/erazemk/garderoba/internal/store"
)

// ActiveFilter narrows ListActive.
type ActiveFilter struct {
	Department  model.Department
	ClientPhone string
}

// ListActive returns a snapshot of stored items in deposit order. Client
// actors always get only their own items, whatever the filter says.
func (lg *Ledger) ListActive(ctx context.Context, actor model.Session, filter ActiveFilter) ([]model.Item, error) {
	if err := lg.authenticated(actor); err != nil {
		return nil, err
	}

	phone := strings.TrimSpace(filter.ClientPhone)
	if actor.IsClient() {
		phone = actor.Phone
	}

	items, err := store.ListStoredItems(ctx, lg.db, phone)
	if err != nil {
		return nil, err
	}
	if filter.Department == "" {
		return items, nil
	}

	filtered := items[:0]
	for _, it := range items {
		if it.Department == filter.Department {
			filtered = append(filtered, it)
		}
	}
	return filtered, nil
}

// ListArchive returns every record ever created, stored and returned alike.
func (lg *Ledger) ListArchive(ctx context.Context, actor model.Session) ([]model.Item, error) {
	if err := lg.matrix.Check(actor.Role, permission.ViewArchive); err != nil {
		return nil, err
	}
	return store.ListArchive(ctx, lg.db, "")
}

// LookupCode reports the record that most recently carried code. Clients
// can only see their own items; anything else is model.ErrNotFound.
func (lg *Ledger) LookupCode(ctx context.Context, actor model.Session, code string) (*model.Item, error) {
	if err := lg.authenticated(actor); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, model.ErrNotFound
	}

	item, err := store.GetLatestItemByCode(ctx, lg.db, code)
	if err != nil {
		return nil, err
	}
	if item == nil || (actor.IsClient() && item.ClientPhone != actor.Phone) {
		return nil, model.ErrNotFound
	}
	return item, nil
}

// Occupancy reports active counts against limits for every department.
func (lg *Ledger) Occupancy(ctx context.Context, actor model.Session) ([]model.Occupancy, error) {
	if err := lg.authenticated(actor); err != nil {
		return nil, err
	}
	return lg.occupancy(ctx)
}

func (lg *Ledger) occupancy(ctx context.Context) ([]model.Occupancy, error) {
	counts, err := store.CountStoredByDepartment(ctx, lg.db)
	if err != nil {
		return nil, err
	}
	out := make([]model.Occupancy, 0, len(model.Departments))
	for _, d := range model.Departments {
		out = append(out, model.Occupancy{Department: d, Active: counts[d], Limit: lg.limits[d]})
	}
	return out, nil
}

// ListClients returns the client registry.
func (lg *Ledger) ListClients(ctx context.Context, actor model.Session) ([]model.Client, error) {
	if err := lg.matrix.Check(actor.Role, permission.ViewClients); err != nil {
		return nil, err
	}
	return store.ListClients(ctx, lg.db)
}

// Limits returns a copy of the configured capacities.
func (lg *Ledger) Limits() Limits {
	out := make(Limits, len(lg.limits))
	for d, n := range lg.limits {
		out[d] = n
	}
	return out
}

// Snapshot returns occupancy without an actor, for metrics and the CLI.
func (lg *Ledger) Snapshot(ctx context.Context) ([]model.Occupancy, error) {
	return lg.occupancy(ctx)
}
