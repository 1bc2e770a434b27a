package domain

import (
	"github.com/yungbote/astrolab-backend/internal/domain/analytics"
	"github.com/yungbote/astrolab-backend/internal/domain/experiments"
)

const (
	EventAbTestAssignment = analytics.EventAbTestAssignment
	EventAbTestConversion = analytics.EventAbTestConversion
)

type (
	AnalyticsEvent = analytics.AnalyticsEvent

	AbTest       = experiments.AbTest
	Variant      = experiments.Variant
	AbAssignment = experiments.AbAssignment
)

// VisitorKeyFor re-exports the visitor-identity rule for callers that import
// the aggregate package.
func VisitorKeyFor(userID, sessionID string) string {
	return experiments.VisitorKeyFor(userID, sessionID)
}
