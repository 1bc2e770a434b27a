package db

import (
	types "github.com/yungbote/astrolab-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Product analytics
		// =========================
		&types.AnalyticsEvent{},

		// =========================
		// Experiments
		// =========================
		&types.AbTest{},
		&types.AbAssignment{},
	)
}
