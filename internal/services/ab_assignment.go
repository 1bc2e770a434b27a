package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	experimentsrepo "github.com/yungbote/astrolab-backend/internal/data/repos/experiments"
	types "github.com/yungbote/astrolab-backend/internal/domain"
	errs "github.com/yungbote/astrolab-backend/internal/pkg/errors"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

// EventTracker is the best-effort emission hook the experiment services use.
// BatchQueue satisfies it; Track never fails, so emission can never fail an
// assignment or a conversion.
type EventTracker interface {
	Track(ev EventInput)
}

type VariantRequest struct {
	TestName  string
	UserID    string
	SessionID string
	// Force names a variant to assign instead of drawing randomly. Honored
	// only when it is a legal variant of the test; stickiness is persisted
	// identically.
	Force string
}

type VariantResult struct {
	VariantName   string         `json:"variantName"`
	VariantConfig map[string]any `json:"variantConfig"`
}

type AssignmentService interface {
	// GetVariant returns the visitor's sticky variant for the named test,
	// creating the assignment on first sight via a weighted random pick.
	// A nil result with a nil error means the test currently has no opinion
	// (unknown, inactive, or outside its time window).
	GetVariant(ctx context.Context, tx *gorm.DB, req VariantRequest) (*VariantResult, error)
}

type assignmentService struct {
	db      *gorm.DB
	log     *logger.Logger
	tests   experimentsrepo.AbTestRepo
	assigns experimentsrepo.AbAssignmentRepo
	tracker EventTracker
}

func NewAssignmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	tests experimentsrepo.AbTestRepo,
	assigns experimentsrepo.AbAssignmentRepo,
	tracker EventTracker,
) AssignmentService {
	return &assignmentService{
		db:      db,
		log:     baseLog.With("service", "AssignmentService"),
		tests:   tests,
		assigns: assigns,
		tracker: tracker,
	}
}

func (s *assignmentService) GetVariant(ctx context.Context, tx *gorm.DB, req VariantRequest) (*VariantResult, error) {
	userID := strings.TrimSpace(req.UserID)
	sessionID := strings.TrimSpace(req.SessionID)
	if userID == "" && sessionID == "" {
		return nil, fmt.Errorf("%w: at least one of user id or session id is required", errs.ErrInvalidArgument)
	}
	testName := strings.TrimSpace(req.TestName)
	if testName == "" {
		return nil, fmt.Errorf("%w: test name is required", errs.ErrInvalidArgument)
	}

	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	now := time.Now().UTC()
	test, err := s.tests.GetByName(ctx, transaction, testName)
	if err != nil {
		return nil, err
	}
	if test == nil || !test.RunningAt(now) {
		// "No opinion" is a normal outcome, not an error: the caller falls
		// back to the default experience.
		return nil, nil
	}
	if len(test.Variants) == 0 {
		return nil, fmt.Errorf("%w: test %q has no variants", errs.ErrInvalidArgument, testName)
	}

	visitorKey := types.VisitorKeyFor(userID, sessionID)

	existing, err := s.assigns.GetByTestAndVisitorKey(ctx, transaction, test.ID, visitorKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return resultFor(test, existing.VariantName), nil
	}

	variant := s.pickVariant(test, req.Force)

	row := &types.AbAssignment{
		ID:          uuid.New(),
		TestID:      test.ID,
		UserID:      userID,
		SessionID:   sessionID,
		VisitorKey:  visitorKey,
		VariantName: variant.Name,
		AssignedAt:  now,
	}
	if err := s.assigns.Create(ctx, transaction, row); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			// Lost the create race: someone else assigned this visitor
			// between our lookup and our insert. Their pick wins.
			winner, rerr := s.assigns.GetByTestAndVisitorKey(ctx, transaction, test.ID, visitorKey)
			if rerr != nil {
				return nil, rerr
			}
			if winner == nil {
				return nil, err
			}
			return resultFor(test, winner.VariantName), nil
		}
		return nil, err
	}

	s.emit(types.EventAbTestAssignment, "assign", test.Name, variant.Name, userID, sessionID)
	return resultFor(test, variant.Name), nil
}

// pickVariant draws a uniform value in [0, totalWeight) and walks the
// variants accumulating weight; the first variant whose cumulative weight
// exceeds the draw wins. A zero-weight variant can never be selected. When
// the total weight is zero the first variant is returned deterministically.
func (s *assignmentService) pickVariant(test *types.AbTest, force string) *types.Variant {
	if force = strings.TrimSpace(force); force != "" {
		if v := test.VariantByName(force); v != nil {
			return v
		}
		s.log.Warn("forced variant is not part of the test, drawing randomly",
			"test_name", test.Name, "forced", force)
	}

	total := 0.0
	for i := range test.Variants {
		if w := test.Variants[i].Weight; w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return &test.Variants[0]
	}
	draw := rand.Float64() * total
	cum := 0.0
	for i := range test.Variants {
		if w := test.Variants[i].Weight; w > 0 {
			cum += w
			if draw < cum {
				return &test.Variants[i]
			}
		}
	}
	// Floating point edge: draw landed on the upper bound.
	for i := len(test.Variants) - 1; i >= 0; i-- {
		if test.Variants[i].Weight > 0 {
			return &test.Variants[i]
		}
	}
	return &test.Variants[0]
}

func (s *assignmentService) emit(eventName, action, testName, variantName, userID, sessionID string) {
	if s.tracker == nil {
		return
	}
	s.tracker.Track(EventInput{
		EventName:     eventName,
		EventCategory: "ab_testing",
		EventAction:   action,
		Properties: map[string]any{
			"test_name": testName,
			"variant":   variantName,
		},
		UserID:    userID,
		SessionID: sessionID,
	})
}

func resultFor(test *types.AbTest, variantName string) *VariantResult {
	res := &VariantResult{VariantName: variantName}
	// The variant may have been renamed after assignment; stickiness still
	// returns the recorded name, just without a config payload.
	if v := test.VariantByName(variantName); v != nil {
		res.VariantConfig = v.Config
	}
	return res
}
