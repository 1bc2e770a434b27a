package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	analyticsrepo "github.com/yungbote/astrolab-backend/internal/data/repos/analytics"
	types "github.com/yungbote/astrolab-backend/internal/domain"
	errs "github.com/yungbote/astrolab-backend/internal/pkg/errors"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

// EventInput is the producer-facing shape of one tracking call. It is what
// the batch queue buffers and what the ingest endpoints accept.
type EventInput struct {
	EventName     string         `json:"event_name"`
	EventCategory string         `json:"event_category"`
	EventAction   string         `json:"event_action"`
	Properties    map[string]any `json:"properties,omitempty"`

	ClientTimestamp *time.Time `json:"client_timestamp,omitempty"`
	UserID          string     `json:"user_id,omitempty"`
	SessionID       string     `json:"session_id,omitempty"`
}

type EventService interface {
	// IngestOne persists a single event, filling the receipt timestamp and a
	// session id when absent. A missing name/category/action is a hard
	// validation error, never a silent drop.
	IngestOne(ctx context.Context, tx *gorm.DB, in EventInput) (uuid.UUID, error)
	// IngestBatch persists the valid items of a non-empty batch in one bulk
	// write. Invalid items are skipped and counted, not fatal to the rest.
	// Returns the number of accepted events.
	IngestBatch(ctx context.Context, tx *gorm.DB, inputs []EventInput) (int, error)
}

type eventService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo analyticsrepo.EventRepo
}

func NewEventService(db *gorm.DB, baseLog *logger.Logger, repo analyticsrepo.EventRepo) EventService {
	return &eventService{
		db:   db,
		log:  baseLog.With("service", "EventService"),
		repo: repo,
	}
}

func validateEventInput(in EventInput) error {
	if strings.TrimSpace(in.EventName) == "" {
		return fmt.Errorf("%w: event_name is required", errs.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.EventCategory) == "" {
		return fmt.Errorf("%w: event_category is required", errs.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.EventAction) == "" {
		return fmt.Errorf("%w: event_action is required", errs.ErrInvalidArgument)
	}
	return nil
}

func (s *eventService) buildRow(in EventInput, now time.Time) *types.AnalyticsEvent {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	var props datatypes.JSON
	if len(in.Properties) > 0 {
		if b, err := json.Marshal(in.Properties); err == nil {
			props = datatypes.JSON(b)
		}
	}
	var clientTS *time.Time
	if in.ClientTimestamp != nil && !in.ClientTimestamp.IsZero() {
		t := in.ClientTimestamp.UTC()
		clientTS = &t
	}
	return &types.AnalyticsEvent{
		ID:              uuid.New(),
		UserID:          strings.TrimSpace(in.UserID),
		SessionID:       sessionID,
		EventName:       strings.TrimSpace(in.EventName),
		EventCategory:   strings.TrimSpace(in.EventCategory),
		EventAction:     strings.TrimSpace(in.EventAction),
		Properties:      props,
		ClientTimestamp: clientTS,
		ReceivedAt:      now,
	}
}

func (s *eventService) IngestOne(ctx context.Context, tx *gorm.DB, in EventInput) (uuid.UUID, error) {
	if err := validateEventInput(in); err != nil {
		return uuid.Nil, err
	}
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	row := s.buildRow(in, time.Now().UTC())
	if _, err := s.repo.Create(ctx, transaction, []*types.AnalyticsEvent{row}); err != nil {
		s.log.Warn("event ingest failed", "event_name", row.EventName, "error", err)
		return uuid.Nil, err
	}
	return row.ID, nil
}

func (s *eventService) IngestBatch(ctx context.Context, tx *gorm.DB, inputs []EventInput) (int, error) {
	if len(inputs) == 0 {
		return 0, fmt.Errorf("%w: empty batch", errs.ErrInvalidArgument)
	}
	now := time.Now().UTC()
	rows := make([]*types.AnalyticsEvent, 0, len(inputs))
	skipped := 0
	for i := range inputs {
		if err := validateEventInput(inputs[i]); err != nil {
			skipped++
			continue
		}
		rows = append(rows, s.buildRow(inputs[i], now))
	}
	if skipped > 0 {
		s.log.Warn("batch contained invalid events", "skipped", skipped, "total", len(inputs))
	}
	if len(rows) == 0 {
		return 0, nil
	}
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	if _, err := s.repo.Create(ctx, transaction, rows); err != nil {
		s.log.Warn("batch ingest failed", "count", len(rows), "error", err)
		return 0, err
	}
	return len(rows), nil
}
