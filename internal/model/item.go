package model

import (
	"net/mail"
	"strings"
	"time"
)

// Department is the storage section an item is kept in.
type Department string

// Departments.
const (
	DepartmentDocuments Department = "documents"
	DepartmentPhotos    Department = "photos"
	DepartmentOther     Department = "other"
)

// Departments lists every department in display order.
var Departments = []Department{DepartmentDocuments, DepartmentPhotos, DepartmentOther}

// Valid reports whether d is one of the known departments.
func (d Department) Valid() bool {
	switch d {
	case DepartmentDocuments, DepartmentPhotos, DepartmentOther:
		return true
	}
	return false
}

// ItemStatus is the custody state of an item.
type ItemStatus string

// Item statuses. The only transition is Stored -> Returned.
const (
	ItemStatusStored   ItemStatus = "stored"
	ItemStatusReturned ItemStatus = "returned"
)

// Item is a custody record: one physical object from deposit to release.
type Item struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	Department       Department `json:"department"`
	ClientName       string     `json:"client_name"`
	ClientPhone      string     `json:"client_phone"`
	ClientEmail      string     `json:"client_email,omitempty"`
	DepositAmount    int64      `json:"deposit_amount"`
	ReturnAmount     int64      `json:"return_amount"`
	Discount         int        `json:"discount,omitempty"`
	DepositedAt      time.Time  `json:"deposited_at"`
	ExpectedReturnAt *time.Time `json:"expected_return_at,omitempty"`
	ReturnedAt       *time.Time `json:"returned_at,omitempty"`
	Status           ItemStatus `json:"status"`
	CreatedBy        string     `json:"created_by"`
}

// Stored reports whether the item is still in custody.
func (i *Item) Stored() bool {
	return i.Status == ItemStatusStored
}

// ItemDraft holds the caller-supplied fields for a check-in.
type ItemDraft struct {
	Name             string     `json:"name"`
	Department       Department `json:"department"`
	ClientName       string     `json:"client_name"`
	ClientPhone      string     `json:"client_phone"`
	ClientEmail      string     `json:"client_email,omitempty"`
	DepositAmount    int64      `json:"deposit_amount"`
	ReturnAmount     int64      `json:"return_amount"`
	Discount         int        `json:"discount,omitempty"`
	ExpectedReturnAt *time.Time `json:"expected_return_at,omitempty"`
}

// Normalize trims surrounding whitespace from the free-text fields.
func (d *ItemDraft) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.ClientName = strings.TrimSpace(d.ClientName)
	d.ClientPhone = strings.TrimSpace(d.ClientPhone)
	d.ClientEmail = strings.TrimSpace(d.ClientEmail)
}

// Validate checks the draft and returns a *ValidationError listing every
// offending field, or nil.
func (d ItemDraft) Validate() error {
	v := &ValidationError{}
	if d.Name == "" {
		v.Add("name", "required")
	}
	if !d.Department.Valid() {
		v.Add("department", "must be one of documents, photos, other")
	}
	if d.ClientName == "" {
		v.Add("client_name", "required")
	}
	if d.ClientPhone == "" {
		v.Add("client_phone", "required")
	}
	if d.ClientEmail != "" {
		if _, err := mail.ParseAddress(d.ClientEmail); err != nil {
			v.Add("client_email", "invalid email")
		}
	}
	if d.DepositAmount < 0 {
		v.Add("deposit_amount", "must not be negative")
	}
	if d.ReturnAmount < 0 {
		v.Add("return_amount", "must not be negative")
	}
	if d.Discount < 0 || d.Discount > 100 {
		v.Add("discount", "must be between 0 and 100")
	}
	if v.HasErrors() {
		return v
	}
	return nil
}

// Occupancy reports how full a department is.
type Occupancy struct {
	Department Department `json:"department"`
	Active     int        `json:"active"`
	Limit      int        `json:"limit"`
}
