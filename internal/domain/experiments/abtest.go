package experiments

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Variant is one arm of an A/B test. Weights are relative and normalized at
// assignment time; they do not need to sum to any fixed total.
type Variant struct {
	Name   string         `json:"name"`
	Weight float64        `json:"weight"`
	Config map[string]any `json:"config,omitempty"`
}

// AbTest is an experiment definition. Created by admin tooling and read by
// the assignment flow; assignment and conversion never mutate it.
type AbTest struct {
	ID   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null;uniqueIndex" json:"name"`

	// Variants keeps the admin-defined order; variant names are unique
	// within a test and there are at least two.
	Variants datatypes.JSONSlice[Variant] `gorm:"column:variants;type:jsonb;not null" json:"variants"`

	StartAt time.Time  `gorm:"column:start_at;not null" json:"start_at"`
	EndAt   *time.Time `gorm:"column:end_at" json:"end_at,omitempty"`
	Active  bool       `gorm:"column:active;not null;default:true" json:"active"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AbTest) TableName() string { return "ab_test" }

// RunningAt reports whether the test accepts new assignments at ts:
// active, started, and before the (optional, exclusive) end.
func (t *AbTest) RunningAt(ts time.Time) bool {
	if !t.Active {
		return false
	}
	if ts.Before(t.StartAt) {
		return false
	}
	if t.EndAt != nil && !ts.Before(*t.EndAt) {
		return false
	}
	return true
}

// VariantByName returns the named variant, or nil when the test has no such arm.
func (t *AbTest) VariantByName(name string) *Variant {
	for i := range t.Variants {
		if t.Variants[i].Name == name {
			return &t.Variants[i]
		}
	}
	return nil
}
