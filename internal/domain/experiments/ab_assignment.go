package experiments

import (
	"time"

	"github.com/google/uuid"
)

// AbAssignment is the sticky binding of one visitor to one variant of one
// test. The unique index on (test_id, visitor_key) is what enforces the
// at-most-one-assignment contract; concurrent creators race on it and the
// loser reloads the winning row.
type AbAssignment struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TestID uuid.UUID `gorm:"type:uuid;not null;index:idx_ab_assignment_visitor,unique,priority:1" json:"test_id"`
	Test   *AbTest   `gorm:"constraint:OnDelete:CASCADE;foreignKey:TestID;references:ID" json:"test,omitempty"`

	UserID    string `gorm:"column:user_id;index" json:"user_id,omitempty"`
	SessionID string `gorm:"column:session_id;not null;index" json:"session_id"`

	// VisitorKey is the stickiness key: user id when known, session id
	// otherwise. Computed once at creation, never recomputed.
	VisitorKey string `gorm:"column:visitor_key;not null;index:idx_ab_assignment_visitor,unique,priority:2" json:"visitor_key"`

	VariantName string `gorm:"column:variant_name;not null" json:"variant_name"`

	Converted       bool       `gorm:"column:converted;not null;default:false" json:"converted"`
	ConversionValue *float64   `gorm:"column:conversion_value" json:"conversion_value,omitempty"`
	AssignedAt      time.Time  `gorm:"column:assigned_at;not null;default:now()" json:"assigned_at"`
	ConvertedAt     *time.Time `gorm:"column:converted_at" json:"converted_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AbAssignment) TableName() string { return "ab_assignment" }

// VisitorKeyFor applies the visitor-identity rule shared by assignment and
// conversion lookups.
func VisitorKeyFor(userID, sessionID string) string {
	if userID != "" {
		return userID
	}
	return sessionID
}
