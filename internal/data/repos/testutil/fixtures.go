package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/astrolab-backend/internal/domain"
)

func SeedAbTest(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, variants []types.Variant) *types.AbTest {
	tb.Helper()
	t := &types.AbTest{
		ID:       uuid.New(),
		Name:     name,
		Variants: variants,
		StartAt:  time.Now().UTC().Add(-time.Hour),
		Active:   true,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed ab test: %v", err)
	}
	return t
}

func SeedAssignment(tb testing.TB, ctx context.Context, tx *gorm.DB, testID uuid.UUID, visitorKey, variantName string) *types.AbAssignment {
	tb.Helper()
	a := &types.AbAssignment{
		ID:          uuid.New(),
		TestID:      testID,
		SessionID:   visitorKey,
		VisitorKey:  visitorKey,
		VariantName: variantName,
		AssignedAt:  time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assignment: %v", err)
	}
	return a
}
