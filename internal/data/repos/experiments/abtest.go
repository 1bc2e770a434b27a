package experiments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/astrolab-backend/internal/domain"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

type AbTestRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.AbTest) ([]*types.AbTest, error)

	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AbTest, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AbTest, error)
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.AbTest, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.AbTest, error)

	SetActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, active bool) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error

	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type abTestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAbTestRepo(db *gorm.DB, baseLog *logger.Logger) AbTestRepo {
	return &abTestRepo{db: db, log: baseLog.With("repo", "AbTestRepo")}
}

func (r *abTestRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.AbTest) ([]*types.AbTest, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.AbTest{}, nil
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *abTestRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AbTest, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.AbTest
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

func (r *abTestRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AbTest, error) {
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

func (r *abTestRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.AbTest, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if name == "" {
		return nil, nil
	}
	var out []*types.AbTest
	if err := t.WithContext(ctx).
		Where("name = ?", name).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *abTestRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.AbTest, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.AbTest
	if err := t.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *abTestRepo) SetActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, active bool) error {
	return r.UpdateFields(ctx, tx, id, map[string]interface{}{"active": active})
}

func (r *abTestRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(ctx).
		Model(&types.AbTest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *abTestRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(ctx).Where("id IN ?", ids).Delete(&types.AbTest{}).Error
}
