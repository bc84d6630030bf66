package ledger

import (
	"fmt"

	"github.com/erazemk/garderoba/internal/model"
)

// MaxOtherLimit caps the configurable capacity of the "other" department.
const MaxOtherLimit = 1000

// Limits maps each department to how many items it may hold at once.
type Limits map[model.Department]int

// DefaultLimits are used when no limits are configured.
func DefaultLimits() Limits {
	return Limits{
		model.DepartmentDocuments: 100,
		model.DepartmentPhotos:    100,
		model.DepartmentOther:     1000,
	}
}

// Validate requires a positive limit for every department.
func (l Limits) Validate() error {
	for _, d := range model.Departments {
		n, ok := l[d]
		if !ok {
			return fmt.Errorf("missing limit for department %q", d)
		}
		if n <= 0 {
			return fmt.Errorf("limit for department %q must be positive", d)
		}
	}
	for d := range l {
		if !d.Valid() {
			return fmt.Errorf("unknown department %q", d)
		}
	}
	if l[model.DepartmentOther] > MaxOtherLimit {
		return fmt.Errorf("limit for department %q must not exceed %d", model.DepartmentOther, MaxOtherLimit)
	}
	return nil
}
