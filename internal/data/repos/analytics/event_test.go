package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/astrolab-backend/internal/data/repos/testutil"
	types "github.com/yungbote/astrolab-backend/internal/domain"
)

func TestEventRepo(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)

	ctx := context.Background()
	repo := NewEventRepo(gdb, testutil.Logger(t))

	now := time.Now().UTC()
	sessionID := uuid.New().String()
	e1 := &types.AnalyticsEvent{
		ID:            uuid.New(),
		SessionID:     sessionID,
		UserID:        "u1",
		EventName:     "page_view",
		EventCategory: "navigation",
		EventAction:   "view",
		Properties:    datatypes.JSON([]byte(`{"path":"/horoscope"}`)),
		ReceivedAt:    now,
	}
	e2 := &types.AnalyticsEvent{
		ID:            uuid.New(),
		SessionID:     sessionID,
		EventName:     "page_view",
		EventCategory: "navigation",
		EventAction:   "view",
		ReceivedAt:    now.Add(time.Second),
	}
	if _, err := repo.Create(ctx, tx, []*types.AnalyticsEvent{e1, e2}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, err := repo.GetByID(ctx, tx, e1.ID); err != nil || got == nil || got.ID != e1.ID {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if rows, err := repo.GetByIDs(ctx, tx, []uuid.UUID{e1.ID, e2.ID}); err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}
	rows, err := repo.GetBySessionID(ctx, tx, sessionID, 0)
	if err != nil || len(rows) != 2 {
		t.Fatalf("GetBySessionID: err=%v len=%d", err, len(rows))
	}
	// Newest first.
	if rows[0].ID != e2.ID {
		t.Fatalf("GetBySessionID order: got=%v", rows[0].ID)
	}
	if rows, err := repo.GetByUserID(ctx, tx, "u1", 0); err != nil || len(rows) != 1 {
		t.Fatalf("GetByUserID: err=%v len=%d", err, len(rows))
	}
	if n, err := repo.CountByEventName(ctx, tx, "page_view", time.Time{}); err != nil || n != 2 {
		t.Fatalf("CountByEventName: err=%v n=%d", err, n)
	}
	if n, err := repo.CountByEventName(ctx, tx, "page_view", now.Add(500*time.Millisecond)); err != nil || n != 1 {
		t.Fatalf("CountByEventName since: err=%v n=%d", err, n)
	}
}
