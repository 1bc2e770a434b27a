package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	experimentsrepo "github.com/yungbote/astrolab-backend/internal/data/repos/experiments"
	types "github.com/yungbote/astrolab-backend/internal/domain"
	errs "github.com/yungbote/astrolab-backend/internal/pkg/errors"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

type ConversionRequest struct {
	TestName  string
	UserID    string
	SessionID string
	Value     *float64
}

type ConversionService interface {
	// RecordConversion marks the visitor's assignment as converted. Returns
	// false when the test or the assignment does not exist; conversions for
	// unknown or retired tests are silently ignored. Re-applying a recorded
	// conversion is a no-op that still returns true.
	RecordConversion(ctx context.Context, tx *gorm.DB, req ConversionRequest) (bool, error)
}

type conversionService struct {
	db      *gorm.DB
	log     *logger.Logger
	tests   experimentsrepo.AbTestRepo
	assigns experimentsrepo.AbAssignmentRepo
	tracker EventTracker
}

func NewConversionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	tests experimentsrepo.AbTestRepo,
	assigns experimentsrepo.AbAssignmentRepo,
	tracker EventTracker,
) ConversionService {
	return &conversionService{
		db:      db,
		log:     baseLog.With("service", "ConversionService"),
		tests:   tests,
		assigns: assigns,
		tracker: tracker,
	}
}

func (s *conversionService) RecordConversion(ctx context.Context, tx *gorm.DB, req ConversionRequest) (bool, error) {
	userID := strings.TrimSpace(req.UserID)
	sessionID := strings.TrimSpace(req.SessionID)
	if userID == "" && sessionID == "" {
		return false, fmt.Errorf("%w: at least one of user id or session id is required", errs.ErrInvalidArgument)
	}

	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	test, err := s.tests.GetByName(ctx, transaction, strings.TrimSpace(req.TestName))
	if err != nil {
		return false, err
	}
	if test == nil {
		return false, nil
	}

	visitorKey := types.VisitorKeyFor(userID, sessionID)
	assignment, err := s.assigns.GetByTestAndVisitorKey(ctx, transaction, test.ID, visitorKey)
	if err != nil {
		return false, err
	}
	if assignment == nil {
		return false, nil
	}
	if assignment.Converted {
		// Idempotent under retries: the persisted state already reflects the
		// conversion, and no second event is emitted.
		return true, nil
	}

	now := time.Now().UTC()
	if err := s.assigns.MarkConverted(ctx, transaction, assignment.ID, now, req.Value); err != nil {
		return false, err
	}

	if s.tracker != nil {
		props := map[string]any{
			"test_name": test.Name,
			"variant":   assignment.VariantName,
		}
		if req.Value != nil {
			props["conversion_value"] = *req.Value
		}
		s.tracker.Track(EventInput{
			EventName:     types.EventAbTestConversion,
			EventCategory: "ab_testing",
			EventAction:   "convert",
			Properties:    props,
			UserID:        userID,
			SessionID:     sessionID,
		})
	}
	return true, nil
}
