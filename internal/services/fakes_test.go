package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	experimentsrepo "github.com/yungbote/astrolab-backend/internal/data/repos/experiments"
	types "github.com/yungbote/astrolab-backend/internal/domain"
	errs "github.com/yungbote/astrolab-backend/internal/pkg/errors"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logg, err := logger.New("test")
	if err != nil {
		tb.Fatalf("init logger: %v", err)
	}
	return logg
}

// fakeEventRepo is an in-memory analyticsrepo.EventRepo.
type fakeEventRepo struct {
	mu       sync.Mutex
	rows     []*types.AnalyticsEvent
	failNext int
}

func (f *fakeEventRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.AnalyticsEvent) ([]*types.AnalyticsEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return nil, fmt.Errorf("storage unavailable")
	}
	f.rows = append(f.rows, rows...)
	return rows, nil
}

func (f *fakeEventRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AnalyticsEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*types.AnalyticsEvent
	for _, r := range f.rows {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AnalyticsEvent, error) {
	rows, _ := f.GetByIDs(ctx, tx, []uuid.UUID{id})
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (f *fakeEventRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string, limit int) ([]*types.AnalyticsEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AnalyticsEvent
	for _, r := range f.rows {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.AnalyticsEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AnalyticsEvent
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) CountByEventName(ctx context.Context, tx *gorm.DB, eventName string, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.EventName == eventName && (since.IsZero() || !r.ReceivedAt.Before(since)) {
			n++
		}
	}
	return n, nil
}

func (f *fakeEventRepo) all() []*types.AnalyticsEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.AnalyticsEvent, len(f.rows))
	copy(out, f.rows)
	return out
}

// fakeAbTestRepo is an in-memory experimentsrepo.AbTestRepo.
type fakeAbTestRepo struct {
	mu    sync.Mutex
	tests map[string]*types.AbTest
}

func newFakeAbTestRepo(tests ...*types.AbTest) *fakeAbTestRepo {
	f := &fakeAbTestRepo{tests: map[string]*types.AbTest{}}
	for _, t := range tests {
		f.tests[t.Name] = t
	}
	return f
}

func (f *fakeAbTestRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.AbTest) ([]*types.AbTest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		f.tests[r.Name] = r
	}
	return rows, nil
}

func (f *fakeAbTestRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AbTest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*types.AbTest
	for _, t := range f.tests {
		if want[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeAbTestRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AbTest, error) {
	rows, _ := f.GetByIDs(ctx, tx, []uuid.UUID{id})
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (f *fakeAbTestRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.AbTest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tests[name], nil
}

func (f *fakeAbTestRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.AbTest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AbTest
	for _, t := range f.tests {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeAbTestRepo) SetActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tests {
		if t.ID == id {
			t.Active = active
		}
	}
	return nil
}

func (f *fakeAbTestRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}

func (f *fakeAbTestRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		for name, t := range f.tests {
			if t.ID == id {
				delete(f.tests, name)
			}
		}
	}
	return nil
}

// fakeAssignmentRepo is an in-memory experimentsrepo.AbAssignmentRepo that
// enforces the (test, visitor_key) uniqueness the real table has.
type fakeAssignmentRepo struct {
	mu   sync.Mutex
	rows map[string]*types.AbAssignment
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{rows: map[string]*types.AbAssignment{}}
}

func assignmentKey(testID uuid.UUID, visitorKey string) string {
	return testID.String() + "|" + visitorKey
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AbAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := assignmentKey(row.TestID, row.VisitorKey)
	if _, exists := f.rows[key]; exists {
		return fmt.Errorf("%w: assignment exists", errs.ErrConflict)
	}
	cp := *row
	f.rows[key] = &cp
	return nil
}

func (f *fakeAssignmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AbAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAssignmentRepo) GetByTestAndVisitorKey(ctx context.Context, tx *gorm.DB, testID uuid.UUID, visitorKey string) (*types.AbAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[assignmentKey(testID, visitorKey)]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeAssignmentRepo) MarkConverted(ctx context.Context, tx *gorm.DB, id uuid.UUID, convertedAt time.Time, value *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && !r.Converted {
			r.Converted = true
			ts := convertedAt
			r.ConvertedAt = &ts
			if value != nil {
				v := *value
				r.ConversionValue = &v
			}
		}
	}
	return nil
}

func (f *fakeAssignmentRepo) StatsByTestID(ctx context.Context, tx *gorm.DB, testID uuid.UUID) ([]experimentsrepo.VariantStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	agg := map[string]*experimentsrepo.VariantStat{}
	var order []string
	for _, r := range f.rows {
		if r.TestID != testID {
			continue
		}
		st, ok := agg[r.VariantName]
		if !ok {
			st = &experimentsrepo.VariantStat{VariantName: r.VariantName}
			agg[r.VariantName] = st
			order = append(order, r.VariantName)
		}
		st.Participants++
		if r.Converted {
			st.Conversions++
		}
	}
	out := make([]experimentsrepo.VariantStat, 0, len(order))
	for _, name := range order {
		out = append(out, *agg[name])
	}
	return out, nil
}

func (f *fakeAssignmentRepo) CountByTestID(ctx context.Context, tx *gorm.DB, testID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.TestID == testID {
			n++
		}
	}
	return n, nil
}

func (f *fakeAssignmentRepo) FullDeleteByTestIDs(ctx context.Context, tx *gorm.DB, testIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range testIDs {
		for key, r := range f.rows {
			if r.TestID == id {
				delete(f.rows, key)
			}
		}
	}
	return nil
}

// recordingTracker captures best-effort event emission.
type recordingTracker struct {
	mu     sync.Mutex
	events []EventInput
}

func (r *recordingTracker) Track(ev EventInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingTracker) all() []EventInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventInput, len(r.events))
	copy(out, r.events)
	return out
}

// fakeSink is an EventService standing in for the queue's ingestion sink.
type fakeSink struct {
	mu       sync.Mutex
	batches  [][]EventInput
	failNext int
}

func (f *fakeSink) IngestOne(ctx context.Context, tx *gorm.DB, in EventInput) (uuid.UUID, error) {
	_, err := f.IngestBatch(ctx, tx, []EventInput{in})
	return uuid.New(), err
}

func (f *fakeSink) IngestBatch(ctx context.Context, tx *gorm.DB, inputs []EventInput) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return 0, fmt.Errorf("sink unavailable")
	}
	batch := make([]EventInput, len(inputs))
	copy(batch, inputs)
	f.batches = append(f.batches, batch)
	return len(batch), nil
}

func (f *fakeSink) allBatches() [][]EventInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]EventInput, len(f.batches))
	copy(out, f.batches)
	return out
}

func (f *fakeSink) flat() []EventInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []EventInput
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

// memorySpool is an in-memory EventSpool with the same bounded,
// oldest-dropped semantics as the Redis implementation.
type memorySpool struct {
	mu          sync.Mutex
	events      []EventInput
	maxRetained int
	failAppend  bool
}

func (m *memorySpool) Append(ctx context.Context, events []EventInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return fmt.Errorf("spool unavailable")
	}
	m.events = append(m.events, events...)
	if m.maxRetained > 0 && len(m.events) > m.maxRetained {
		m.events = m.events[len(m.events)-m.maxRetained:]
	}
	return nil
}

func (m *memorySpool) Drain(ctx context.Context) ([]EventInput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.events
	m.events = nil
	return out, nil
}

func (m *memorySpool) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
