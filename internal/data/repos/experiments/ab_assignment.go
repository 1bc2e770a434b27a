package experiments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/yungbote/astrolab-backend/internal/domain"
	errs "github.com/yungbote/astrolab-backend/internal/pkg/errors"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

type VariantStat struct {
	VariantName  string `gorm:"column:variant_name"`
	Participants int64  `gorm:"column:participants"`
	Conversions  int64  `gorm:"column:conversions"`
}

type AbAssignmentRepo interface {
	// Create inserts a single assignment row. A unique-violation on
	// (test_id, visitor_key) is returned wrapping errs.ErrConflict so the
	// caller can reload the winning row.
	Create(ctx context.Context, tx *gorm.DB, row *types.AbAssignment) error

	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AbAssignment, error)
	GetByTestAndVisitorKey(ctx context.Context, tx *gorm.DB, testID uuid.UUID, visitorKey string) (*types.AbAssignment, error)

	MarkConverted(ctx context.Context, tx *gorm.DB, id uuid.UUID, convertedAt time.Time, value *float64) error

	StatsByTestID(ctx context.Context, tx *gorm.DB, testID uuid.UUID) ([]VariantStat, error)
	CountByTestID(ctx context.Context, tx *gorm.DB, testID uuid.UUID) (int64, error)

	FullDeleteByTestIDs(ctx context.Context, tx *gorm.DB, testIDs []uuid.UUID) error
}

type abAssignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAbAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AbAssignmentRepo {
	return &abAssignmentRepo{db: db, log: baseLog.With("repo", "AbAssignmentRepo")}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *abAssignmentRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AbAssignment) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.TestID == uuid.Nil || row.VisitorKey == "" {
		return fmt.Errorf("%w: assignment requires test and visitor key", errs.ErrInvalidArgument)
	}
	if err := t.WithContext(ctx).Create(row).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: assignment exists for visitor %q", errs.ErrConflict, row.VisitorKey)
		}
		return err
	}
	return nil
}

func (r *abAssignmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AbAssignment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.AbAssignment
	if err := t.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *abAssignmentRepo) GetByTestAndVisitorKey(ctx context.Context, tx *gorm.DB, testID uuid.UUID, visitorKey string) (*types.AbAssignment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if testID == uuid.Nil || visitorKey == "" {
		return nil, nil
	}
	var out []*types.AbAssignment
	if err := t.WithContext(ctx).
		Where("test_id = ? AND visitor_key = ?", testID, visitorKey).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *abAssignmentRepo) MarkConverted(ctx context.Context, tx *gorm.DB, id uuid.UUID, convertedAt time.Time, value *float64) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	updates := map[string]interface{}{
		"converted":    true,
		"converted_at": convertedAt,
		"updated_at":   time.Now().UTC(),
	}
	if value != nil {
		updates["conversion_value"] = *value
	}
	// Guarded on converted = false so a retried conversion never moves the
	// original converted_at or value.
	return t.WithContext(ctx).
		Model(&types.AbAssignment{}).
		Where("id = ? AND converted = ?", id, false).
		Updates(updates).Error
}

func (r *abAssignmentRepo) StatsByTestID(ctx context.Context, tx *gorm.DB, testID uuid.UUID) ([]VariantStat, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []VariantStat
	if testID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Model(&types.AbAssignment{}).
		Select("variant_name, COUNT(*) AS participants, SUM(CASE WHEN converted THEN 1 ELSE 0 END) AS conversions").
		Where("test_id = ?", testID).
		Group("variant_name").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *abAssignmentRepo) CountByTestID(ctx context.Context, tx *gorm.DB, testID uuid.UUID) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var n int64
	if testID == uuid.Nil {
		return 0, nil
	}
	if err := t.WithContext(ctx).
		Model(&types.AbAssignment{}).
		Where("test_id = ?", testID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *abAssignmentRepo) FullDeleteByTestIDs(ctx context.Context, tx *gorm.DB, testIDs []uuid.UUID) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(testIDs) == 0 {
		return nil
	}
	return t.WithContext(ctx).
		Unscoped().
		Where("test_id IN ?", testIDs).
		Delete(&types.AbAssignment{}).Error
}
