package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenEntriesFrom_KeepsLatestPerType(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	closed := base.Add(time.Hour)
	entries := []*CheckEntry{
		{EntryID: "old", ActivityType: ActivityConstruction, OpenedAt: base},
		{EntryID: "new", ActivityType: ActivityConstruction, OpenedAt: base.Add(30 * time.Minute)},
		{EntryID: "travel", ActivityType: ActivityTravel, ActivitySubType: SubTypeDeparture, OpenedAt: base},
		{EntryID: "closed", ActivityType: ActivityStop, OpenedAt: base, ClosedAt: &closed, ApprovalState: ApprovalPending},
	}

	o := OpenEntriesFrom(entries)
	require.NotNil(t, o.Construction)
	assert.Equal(t, "new", o.Construction.EntryID)
	require.NotNil(t, o.Travel)
	assert.Nil(t, o.Stop)
	assert.Equal(t, 2, o.Count())
}

func TestEntryLabel(t *testing.T) {
	assert.Equal(t, "施工打卡", EntryLabel(ActivityConstruction, ""))
	assert.Equal(t, "在途打卡（出发）", EntryLabel(ActivityTravel, SubTypeDeparture))

	st, ok := ParseTravelSubType("backToNing")
	require.True(t, ok)
	assert.Equal(t, SubTypeBackToBase, st)
}

func TestCheckInvariants(t *testing.T) {
	open := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	same := open

	e := &CheckEntry{ActivityType: ActivityConstruction, ProjectID: Int64Ptr(7), OpenedAt: open}
	require.NoError(t, e.CheckInvariants())

	e.ClosedAt = &same
	e.ApprovalState = ApprovalPending
	assert.ErrorIs(t, e.CheckInvariants(), ErrInvalidInterval)

	travel := &CheckEntry{ActivityType: ActivityTravel, OpenedAt: open}
	assert.ErrorIs(t, travel.CheckInvariants(), ErrSubTypeNotAllowed)
}

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("construction: %w", ErrAlreadyOpen)
	assert.Equal(t, KindStateConflict, KindOf(wrapped))
	assert.Equal(t, "AlreadyOpen", CodeOf(wrapped))

	tr := Transport(context.DeadlineExceeded)
	assert.Equal(t, KindTransport, KindOf(tr))
	assert.True(t, errors.Is(tr, context.DeadlineExceeded))
	assert.True(t, errors.Is(tr, ErrTransport))
	assert.Equal(t, tr, Transport(tr))

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "31.123456, 121.654321", DegradedCoordinates(31.123456, 121.654321).String())
	assert.Equal(t, "获取位置超时，请重试", LocationFailed("获取位置超时，请重试", "").String())
	assert.True(t, DegradedCoordinates(1, 2).Degraded())
	assert.False(t, LocationFailed("x", "").HasCoordinates())
}
