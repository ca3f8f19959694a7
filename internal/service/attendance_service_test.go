package service

import (
	"context"
	"testing"
	"time"

	"github.com/GreaLake/checkIn/internal/aggregator"
	"github.com/GreaLake/checkIn/internal/domain"
	"github.com/GreaLake/checkIn/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func attendanceFixture(t *testing.T) (*fixture, *AttendanceService) {
	f := newFixture()
	f.closedEntry(li, "construction", ts(1, 8, 0), ts(1, 17, 30), domain.ApprovalApproved)
	f.closedEntry(li, "travel", ts(2, 7, 0), ts(2, 8, 15), domain.ApprovalApproved)
	f.closedEntry(wang, "stop", ts(2, 9, 0), ts(2, 11, 0), domain.ApprovalApproved)
	f.closedEntry(wang, "construction", ts(3, 8, 0), ts(3, 12, 0), domain.ApprovalNone)
	f.closedEntry(li, "stop", ts(20, 8, 0), ts(20, 9, 0), domain.ApprovalRejected)
	// 上个月
	f.closedEntry(li, "stop", time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC), time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC), domain.ApprovalApproved)

	att := NewAttendanceService(f.entries, f.projects, time.UTC, zap.NewNop())
	att.SetClock(func() time.Time { return ts(25, 12, 0) })
	return f, att
}

func TestAttendance_Statistics(t *testing.T) {
	_, att := attendanceFixture(t)
	ctx := context.Background()

	st, err := att.Statistics(ctx, RecordsRequest{ActivityType: "all"})
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalRecords)
	assert.Equal(t, 14.75, st.TotalHours)
	assert.Equal(t, st.ConstructionHours+st.TravelHours+st.StopHours, st.TotalHours)
	assert.Equal(t, 3, st.UserStats["li"].RecordCount)
	assert.Equal(t, 1, st.UserStats["wang"].RecordCount)

	st, err = att.Statistics(ctx, RecordsRequest{WorkerID: "li", ActivityType: "construction"})
	require.NoError(t, err)
	assert.Equal(t, 9.5, st.TotalHours)
	assert.Equal(t, "9小时30分钟", st.TotalDisplay)
}

func TestAttendance_RecordsDayFuzz(t *testing.T) {
	_, att := attendanceFixture(t)
	ctx := context.Background()

	// [5/2 - 1天, 5/2 + 1天) 同时包含 5/1 的记录
	records, err := att.Records(ctx, RecordsRequest{Range: aggregator.DateRange{Start: ts(2, 0, 0), End: ts(2, 0, 0)}})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[0].OpenedAt.Equal(ts(2, 9, 0)), "newest first")

	_, err = att.Records(ctx, RecordsRequest{Range: aggregator.DateRange{Start: ts(3, 0, 0), End: ts(1, 0, 0)}})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)

	_, err = att.Records(ctx, RecordsRequest{ActivityType: "overtime"})
	assert.ErrorIs(t, err, domain.ErrUnknownType)
}

func TestAttendance_UserStatistics(t *testing.T) {
	_, att := attendanceFixture(t)

	us, err := att.UserStatistics(context.Background(), "li")
	require.NoError(t, err)
	assert.Equal(t, 2, us.Month.TotalRecords)
	assert.Equal(t, 10.75, us.Month.TotalHours)
	assert.Equal(t, 3, us.AllTime.TotalRecords)
	assert.Equal(t, 12.75, us.AllTime.TotalHours)
}

func TestAttendance_MonthlySummary(t *testing.T) {
	_, att := attendanceFixture(t)

	ms, err := att.MonthlySummary(context.Background(), 2024, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, ms.Statistics.TotalRecords)
	assert.Equal(t, map[string]int{"2024-05-01": 1, "2024-05-02": 2}, ms.Statistics.DailyRecords)

	ms, err = att.MonthlySummary(context.Background(), 2024, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, ms.Statistics.TotalRecords)

	_, err = att.MonthlySummary(context.Background(), 2024, 13)
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}

func TestAttendance_ProjectStatistics(t *testing.T) {
	_, att := attendanceFixture(t)

	ps, err := att.ProjectStatistics(context.Background(), 7, aggregator.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, "七号井", ps.Project.ProjectName)
	assert.Equal(t, 3, ps.Statistics.TotalRecords)

	_, err = att.ProjectStatistics(context.Background(), 42, aggregator.DateRange{})
	assert.ErrorIs(t, err, domain.ErrUnknownProject)
}

func TestAttendance_ProjectsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	f, att := attendanceFixture(t)
	att.SetProjectsCache(store.NewProjectsCache(store.NewRedisKV(client), time.Minute))

	projects, err := att.Projects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "P-007", projects[0].ProjectCode)

	// 缓存期内新增项目不可见
	f.projects.PutProject(domain.Project{ProjectID: 1, ProjectCode: "P-001", ProjectName: "一号井", Status: "active"})
	projects, err = att.Projects(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	mr.FastForward(2 * time.Minute)
	projects, err = att.Projects(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 3)
}
