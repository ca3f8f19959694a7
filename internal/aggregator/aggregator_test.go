package aggregator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, min int) time.Time {
	return time.Date(2024, 5, day, hour, min, 0, 0, time.UTC)
}

func entry(id, worker string, t domain.ActivityType, open, close time.Time, state domain.ApprovalState) *domain.CheckEntry {
	e := &domain.CheckEntry{
		EntryID:      id,
		WorkerID:     worker,
		WorkerName:   "name-" + worker,
		ActivityType: t,
		OpenedAt:     open,
	}
	if t == domain.ActivityTravel {
		e.ActivitySubType = domain.SubTypeDeparture
	} else {
		e.ProjectID = domain.Int64Ptr(7)
	}
	if !close.IsZero() {
		c := close
		e.ClosedAt = &c
		e.ApprovalState = state
	}
	return e
}

func fixture() []*domain.CheckEntry {
	return []*domain.CheckEntry{
		entry("a1", "li", domain.ActivityConstruction, at(1, 8, 0), at(1, 17, 30), domain.ApprovalApproved),
		entry("a2", "li", domain.ActivityTravel, at(2, 7, 0), at(2, 8, 15), domain.ApprovalApproved),
		entry("a3", "wang", domain.ActivityStop, at(2, 9, 0), at(2, 11, 0), domain.ApprovalApproved),
		entry("p1", "wang", domain.ActivityConstruction, at(3, 8, 0), at(3, 12, 0), domain.ApprovalPending),
		entry("r1", "li", domain.ActivityConstruction, at(3, 8, 0), at(3, 12, 0), domain.ApprovalRejected),
		entry("o1", "li", domain.ActivityStop, at(4, 8, 0), time.Time{}, domain.ApprovalNone),
	}
}

func TestAggregate_OnlyApprovedClosed(t *testing.T) {
	s, err := Aggregate(fixture(), Filter{})
	require.NoError(t, err)

	assert.Equal(t, 3, s.TotalRecords)
	assert.Equal(t, 9*time.Hour+30*time.Minute, s.ByType.Construction)
	assert.Equal(t, time.Hour+15*time.Minute, s.ByType.Travel)
	assert.Equal(t, 2*time.Hour, s.ByType.Stop)
	assert.Equal(t, s.ByType.Construction+s.ByType.Travel+s.ByType.Stop, s.Total)

	li, ok := s.Worker("li")
	require.True(t, ok)
	assert.Equal(t, 2, li.RecordCount)
	assert.Equal(t, 10*time.Hour+45*time.Minute, li.Total)
	assert.Equal(t, "name-li", li.WorkerName)

	assert.Equal(t, map[string]int{"2024-05-01": 1, "2024-05-02": 2}, s.DailyRecords)
}

func TestAggregate_RejectedNeverCounted(t *testing.T) {
	filters := []Filter{
		{},
		{WorkerID: "li"},
		{ActivityType: domain.ActivityConstruction},
		{ProjectID: domain.Int64Ptr(7)},
		{DateRange: DateRange{Start: at(3, 0, 0), End: at(3, 0, 0)}},
	}
	for _, f := range filters {
		for _, e := range Select(fixture(), f) {
			assert.NotEqual(t, "r1", e.EntryID)
			assert.NotEqual(t, "p1", e.EntryID)
			assert.NotEqual(t, "o1", e.EntryID)
		}
	}
}

func TestDateRange_DayFuzz(t *testing.T) {
	r := DateRange{Start: at(10, 0, 0), End: at(12, 0, 0)}
	assert.True(t, r.Contains(at(9, 0, 0)))   // start-1day inclusive
	assert.False(t, r.Contains(at(8, 23, 59)))
	assert.True(t, r.Contains(at(13, 23, 59))) // end+1day exclusive
	assert.False(t, r.Contains(at(14, 0, 0)))

	exact := DateRange{Start: at(10, 0, 0), End: at(12, 0, 0), Exact: true}
	assert.False(t, exact.Contains(at(9, 12, 0)))
	assert.True(t, exact.Contains(at(10, 0, 0)))
	assert.False(t, exact.Contains(at(12, 0, 0)))

	assert.True(t, DateRange{}.Contains(at(1, 0, 0)))
}

func TestAggregate_Filters(t *testing.T) {
	s, err := Aggregate(fixture(), Filter{WorkerID: "wang"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalRecords)
	assert.Equal(t, 2*time.Hour, s.Total)

	s, err = Aggregate(fixture(), Filter{ActivityType: domain.ActivityTravel})
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalRecords)

	s, err = Aggregate(fixture(), Filter{ProjectID: domain.Int64Ptr(8)})
	require.NoError(t, err)
	assert.Zero(t, s.TotalRecords)
	assert.Empty(t, s.Workers)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	base, err := Aggregate(fixture(), Filter{})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		entries := fixture()
		rng.Shuffle(len(entries), func(a, b int) { entries[a], entries[b] = entries[b], entries[a] })
		got, err := Aggregate(entries, Filter{})
		require.NoError(t, err)
		assert.Equal(t, base, got)
	}
}

func TestFold_InvalidInterval(t *testing.T) {
	bad := entry("x", "li", domain.ActivityStop, at(2, 10, 0), at(2, 9, 0), domain.ApprovalApproved)
	_, err := Fold([]*domain.CheckEntry{bad})
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
}

func TestStatistics_Hours(t *testing.T) {
	s, err := Aggregate(fixture(), Filter{WorkerID: "li", ActivityType: domain.ActivityConstruction})
	require.NoError(t, err)
	st := s.Statistics()
	assert.Equal(t, 9.5, st.TotalHours)
	assert.Equal(t, 9.5, st.ConstructionHours)
	assert.Equal(t, "9小时30分钟", st.TotalDisplay)
	assert.Equal(t, 1, st.UserStats["li"].RecordCount)
}

func TestMonthRange(t *testing.T) {
	r := MonthRange(2024, time.February, time.UTC)
	assert.True(t, r.Contains(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)))
}
