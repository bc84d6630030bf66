// Package notify delivers custody events to external collaborators after the
// ledger has committed them. Delivery is best-effort: failures are retried
// and logged but never undo a custody transition.
package notify

import (
	"context"
	"time"

	"github.com/erazemk/garderoba/internal/model"
)

// Kind identifies what happened to an item.
type Kind string

// Event kinds.
const (
	KindCheckedIn  Kind = "checked_in"
	KindCheckedOut Kind = "checked_out"
)

// Event describes a committed custody transition.
type Event struct {
	Kind        Kind             `json:"kind"`
	ItemID      string           `json:"item_id"`
	Code        string           `json:"code"`
	Department  model.Department `json:"department"`
	ClientName  string           `json:"client_name"`
	ClientPhone string           `json:"client_phone"`
	Amount      int64            `json:"amount"`
	Actor       string           `json:"actor"`
	At          time.Time        `json:"at"`
}

// CheckedIn builds the event for a new custody record. The billed amount is
// the deposit.
func CheckedIn(item *model.Item) Event {
	return Event{
		Kind:        KindCheckedIn,
		ItemID:      item.ID,
		Code:        item.Code,
		Department:  item.Department,
		ClientName:  item.ClientName,
		ClientPhone: item.ClientPhone,
		Amount:      item.DepositAmount,
		Actor:       item.CreatedBy,
		At:          item.DepositedAt,
	}
}

// CheckedOut builds the event for a released item. The billed amount is the
// return fee.
func CheckedOut(item *model.Item, actor string) Event {
	ev := Event{
		Kind:        KindCheckedOut,
		ItemID:      item.ID,
		Code:        item.Code,
		Department:  item.Department,
		ClientName:  item.ClientName,
		ClientPhone: item.ClientPhone,
		Amount:      item.ReturnAmount,
		Actor:       actor,
	}
	if item.ReturnedAt != nil {
		ev.At = *item.ReturnedAt
	}
	return ev
}

// Sink delivers events to one collaborator.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Publisher accepts events without blocking on delivery.
type Publisher interface {
	Publish(ev Event)
}

// Discard is a Publisher that drops every event.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(Event) {}
