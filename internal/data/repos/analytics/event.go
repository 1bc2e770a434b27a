package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/astrolab-backend/internal/domain"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

type EventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.AnalyticsEvent) ([]*types.AnalyticsEvent, error)

	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AnalyticsEvent, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AnalyticsEvent, error)
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string, limit int) ([]*types.AnalyticsEvent, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.AnalyticsEvent, error)

	CountByEventName(ctx context.Context, tx *gorm.DB, eventName string, since time.Time) (int64, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{db: db, log: baseLog.With("repo", "EventRepo")}
}

func (r *eventRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.AnalyticsEvent) ([]*types.AnalyticsEvent, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.AnalyticsEvent{}, nil
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *eventRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AnalyticsEvent, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.AnalyticsEvent
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AnalyticsEvent, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(ctx, tx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *eventRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string, limit int) ([]*types.AnalyticsEvent, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.AnalyticsEvent
	if sessionID == "" {
		return out, nil
	}
	q := t.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("received_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.AnalyticsEvent, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.AnalyticsEvent
	if userID == "" {
		return out, nil
	}
	q := t.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("received_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventRepo) CountByEventName(ctx context.Context, tx *gorm.DB, eventName string, since time.Time) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var n int64
	q := t.WithContext(ctx).
		Model(&types.AnalyticsEvent{}).
		Where("event_name = ?", eventName)
	if !since.IsZero() {
		q = q.Where("received_at >= ?", since)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
