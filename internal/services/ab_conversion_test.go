package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/astrolab-backend/internal/domain"
	errs "github.com/yungbote/astrolab-backend/internal/pkg/errors"
)

func newConversionFixture(t *testing.T, tests ...*types.AbTest) (ConversionService, *fakeAssignmentRepo, *recordingTracker) {
	t.Helper()
	assigns := newFakeAssignmentRepo()
	tracker := &recordingTracker{}
	svc := NewConversionService(nil, testLogger(t), newFakeAbTestRepo(tests...), assigns, tracker)
	return svc, assigns, tracker
}

func TestRecordConversion(t *testing.T) {
	test := newAbTest("premium_upsell",
		types.Variant{Name: "A", Weight: 1},
	)
	svc, assigns, tracker := newConversionFixture(t, test)
	ctx := context.Background()

	row := &types.AbAssignment{
		ID:          uuid.New(),
		TestID:      test.ID,
		SessionID:   "sess-1",
		VisitorKey:  "sess-1",
		VariantName: "A",
		AssignedAt:  time.Now().UTC(),
	}
	require.NoError(t, assigns.Create(ctx, nil, row))

	value := 9.99
	ok, err := svc.RecordConversion(ctx, nil, ConversionRequest{
		TestName:  "premium_upsell",
		SessionID: "sess-1",
		Value:     &value,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := assigns.GetByID(ctx, nil, row.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Converted)
	require.NotNil(t, stored.ConvertedAt)
	require.NotNil(t, stored.ConversionValue)
	assert.Equal(t, 9.99, *stored.ConversionValue)

	events := tracker.all()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventAbTestConversion, events[0].EventName)
	assert.Equal(t, "convert", events[0].EventAction)
	assert.Equal(t, "A", events[0].Properties["variant"])
	assert.Equal(t, 9.99, events[0].Properties["conversion_value"])
}

func TestRecordConversionIdempotent(t *testing.T) {
	test := newAbTest("premium_upsell",
		types.Variant{Name: "A", Weight: 1},
	)
	svc, assigns, tracker := newConversionFixture(t, test)
	ctx := context.Background()

	row := &types.AbAssignment{
		ID:          uuid.New(),
		TestID:      test.ID,
		SessionID:   "sess-1",
		VisitorKey:  "sess-1",
		VariantName: "A",
		AssignedAt:  time.Now().UTC(),
	}
	require.NoError(t, assigns.Create(ctx, nil, row))

	first := 5.0
	ok, err := svc.RecordConversion(ctx, nil, ConversionRequest{TestName: "premium_upsell", SessionID: "sess-1", Value: &first})
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := assigns.GetByID(ctx, nil, row.ID)
	require.NoError(t, err)
	firstConvertedAt := *after.ConvertedAt

	// A retry still reports success but moves nothing and emits nothing.
	second := 50.0
	ok, err = svc.RecordConversion(ctx, nil, ConversionRequest{TestName: "premium_upsell", SessionID: "sess-1", Value: &second})
	require.NoError(t, err)
	assert.True(t, ok)

	after, err = assigns.GetByID(ctx, nil, row.ID)
	require.NoError(t, err)
	assert.Equal(t, firstConvertedAt, *after.ConvertedAt)
	assert.Equal(t, 5.0, *after.ConversionValue)
	assert.Len(t, tracker.all(), 1)
}

func TestRecordConversionUnknownTest(t *testing.T) {
	svc, _, tracker := newConversionFixture(t)

	ok, err := svc.RecordConversion(context.Background(), nil, ConversionRequest{TestName: "never_existed", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, tracker.all())
}

func TestRecordConversionWithoutAssignment(t *testing.T) {
	test := newAbTest("premium_upsell",
		types.Variant{Name: "A", Weight: 1},
	)
	svc, _, tracker := newConversionFixture(t, test)

	ok, err := svc.RecordConversion(context.Background(), nil, ConversionRequest{TestName: "premium_upsell", SessionID: "never-assigned"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, tracker.all())
}

func TestRecordConversionRequiresIdentity(t *testing.T) {
	svc, _, _ := newConversionFixture(t)

	_, err := svc.RecordConversion(context.Background(), nil, ConversionRequest{TestName: "premium_upsell"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
}
