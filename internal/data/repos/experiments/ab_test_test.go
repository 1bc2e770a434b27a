package experiments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/astrolab-backend/internal/data/repos/testutil"
	types "github.com/yungbote/astrolab-backend/internal/domain"
)

func TestAbTestRepo(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)

	ctx := context.Background()
	repo := NewAbTestRepo(gdb, testutil.Logger(t))

	variants := []types.Variant{
		{Name: "control", Weight: 50},
		{Name: "treatment", Weight: 50, Config: map[string]any{"theme": "celestial"}},
	}
	row := &types.AbTest{
		ID:       uuid.New(),
		Name:     "onboarding_flow_" + uuid.New().String(),
		Variants: variants,
		StartAt:  time.Now().UTC().Add(-time.Hour),
		Active:   true,
	}
	if _, err := repo.Create(ctx, tx, []*types.AbTest{row}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByName(ctx, tx, row.Name)
	if err != nil || got == nil || got.ID != row.ID {
		t.Fatalf("GetByName: got=%v err=%v", got, err)
	}
	if len(got.Variants) != 2 || got.Variants[0].Name != "control" {
		t.Fatalf("variants round-trip: %+v", got.Variants)
	}
	if got.Variants[1].Config["theme"] != "celestial" {
		t.Fatalf("variant config round-trip: %+v", got.Variants[1].Config)
	}

	if got, err := repo.GetByID(ctx, tx, row.ID); err != nil || got == nil {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got, err := repo.GetByName(ctx, tx, "does_not_exist"); err != nil || got != nil {
		t.Fatalf("GetByName missing: got=%v err=%v", got, err)
	}

	if err := repo.SetActive(ctx, tx, row.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	got, _ = repo.GetByID(ctx, tx, row.ID)
	if got.Active {
		t.Fatalf("SetActive verify: still active")
	}

	end := time.Now().UTC().Add(24 * time.Hour)
	if err := repo.UpdateFields(ctx, tx, row.ID, map[string]interface{}{"end_at": end}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	if err := repo.SoftDeleteByIDs(ctx, tx, []uuid.UUID{row.ID}); err != nil {
		t.Fatalf("SoftDeleteByIDs: %v", err)
	}
	if got, _ := repo.GetByID(ctx, tx, row.ID); got != nil {
		t.Fatalf("soft delete verify: row still visible")
	}
}
