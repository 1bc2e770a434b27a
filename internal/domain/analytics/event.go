package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Canonical event names emitted by the experiments core. Everything else is
// free-form producer vocabulary and is not interpreted here.
const (
	EventAbTestAssignment = "ab_test_assignment"
	EventAbTestConversion = "ab_test_conversion"
)

// AnalyticsEvent is one observed occurrence. Rows are immutable once
// persisted: nothing in the backend updates or deletes them.
type AnalyticsEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;index" json:"user_id,omitempty"`
	SessionID string    `gorm:"column:session_id;not null;index" json:"session_id"`

	EventName     string `gorm:"column:event_name;not null;index" json:"event_name"`
	EventCategory string `gorm:"column:event_category;not null" json:"event_category"`
	EventAction   string `gorm:"column:event_action;not null" json:"event_action"`

	// Properties is an open bag; the core never branches on its contents.
	Properties datatypes.JSON `gorm:"column:properties;type:jsonb" json:"properties,omitempty"`

	ClientTimestamp *time.Time `gorm:"column:client_timestamp" json:"client_timestamp,omitempty"`
	ReceivedAt      time.Time  `gorm:"column:received_at;not null;default:now();index" json:"received_at"`
}

func (AnalyticsEvent) TableName() string { return "analytics_event" }
