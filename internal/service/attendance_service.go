package service

import (
	"context"
	"errors"
	"time"

	"github.com/GreaLake/checkIn/internal/aggregator"
	"github.com/GreaLake/checkIn/internal/domain"
	"github.com/GreaLake/checkIn/internal/repository"
	"github.com/GreaLake/checkIn/internal/store"

	"go.uber.org/zap"
)

// AttendanceService 考勤查询与统计
// 从存储加载已签退且审批通过的记录快照，交给 aggregator 做筛选和汇总
type AttendanceService struct {
	entries  repository.EntriesRepository
	projects repository.ProjectsRepository
	cache    *store.ProjectsCache
	logger   *zap.Logger
	now      func() time.Time
	loc      *time.Location
}

// NewAttendanceService 创建考勤服务；loc 为按天/按月统计使用的时区
func NewAttendanceService(entries repository.EntriesRepository, projects repository.ProjectsRepository, loc *time.Location, logger *zap.Logger) *AttendanceService {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{
		entries:  entries,
		projects: projects,
		logger:   logger,
		now:      time.Now,
		loc:      loc,
	}
}

func (s *AttendanceService) SetProjectsCache(c *store.ProjectsCache) { s.cache = c }

func (s *AttendanceService) SetClock(now func() time.Time) { s.now = now }

// Location 统计使用的时区
func (s *AttendanceService) Location() *time.Location { return s.loc }

// RecordsRequest 考勤查询条件；ActivityType 为空或 "all" 表示全部
type RecordsRequest struct {
	Range        aggregator.DateRange
	WorkerID     string
	ActivityType string
	ProjectID    *int64
}

func (req RecordsRequest) filter() (aggregator.Filter, error) {
	if err := req.Range.Validate(); err != nil {
		return aggregator.Filter{}, err
	}
	f := aggregator.Filter{DateRange: req.Range, WorkerID: req.WorkerID, ProjectID: req.ProjectID}
	if req.WorkerID == "all" {
		f.WorkerID = ""
	}
	if req.ActivityType != "" && req.ActivityType != "all" {
		t, ok := domain.ParseActivityType(req.ActivityType)
		if !ok {
			return aggregator.Filter{}, domain.ErrUnknownType
		}
		f.ActivityType = t
	}
	return f, nil
}

// snapshot 按条件从存储取回候选记录（已审批通过、已签退），精确筛选由 aggregator 完成
func (s *AttendanceService) snapshot(ctx context.Context, f aggregator.Filter) ([]*domain.CheckEntry, error) {
	rf := &repository.EntryFilters{
		ActivityType:  f.ActivityType,
		ProjectID:     f.ProjectID,
		ApprovalState: domain.ApprovalApproved,
		ClosedOnly:    true,
	}
	if f.WorkerID != "" {
		rf.WorkerIDs = []string{f.WorkerID}
	}
	rf.From, rf.To = f.DateRange.Bounds()
	return s.entries.ListEntries(ctx, rf)
}

// Records 考勤记录，签到时间倒序
func (s *AttendanceService) Records(ctx context.Context, req RecordsRequest) ([]*domain.CheckEntry, error) {
	f, err := req.filter()
	if err != nil {
		return nil, err
	}
	entries, err := s.snapshot(ctx, f)
	if err != nil {
		return nil, err
	}
	return aggregator.Select(entries, f), nil
}

// Statistics 考勤统计
func (s *AttendanceService) Statistics(ctx context.Context, req RecordsRequest) (*aggregator.Statistics, error) {
	sum, err := s.summary(ctx, req)
	if err != nil {
		return nil, err
	}
	st := sum.Statistics()
	return &st, nil
}

func (s *AttendanceService) summary(ctx context.Context, req RecordsRequest) (aggregator.Summary, error) {
	f, err := req.filter()
	if err != nil {
		return aggregator.Summary{}, err
	}
	entries, err := s.snapshot(ctx, f)
	if err != nil {
		return aggregator.Summary{}, err
	}
	sum, err := aggregator.Aggregate(entries, f)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInterval) {
			s.logger.Error("Stored entry has check-out before check-in", zap.Error(err))
		}
		return aggregator.Summary{}, err
	}
	return sum, nil
}

// UserStatistics 个人统计：本月与累计
type UserStatistics struct {
	WorkerID string                `json:"userId"`
	Month    aggregator.Statistics `json:"currentMonth"`
	AllTime  aggregator.Statistics `json:"allTime"`
}

// UserStatistics 个人统计
func (s *AttendanceService) UserStatistics(ctx context.Context, workerID string) (*UserStatistics, error) {
	if workerID == "" {
		return nil, domain.ErrMissingWorker
	}
	now := s.now().In(s.loc)

	allFilter := aggregator.Filter{WorkerID: workerID}
	entries, err := s.snapshot(ctx, allFilter)
	if err != nil {
		return nil, err
	}
	all, err := aggregator.Aggregate(entries, allFilter)
	if err != nil {
		return nil, err
	}
	// 本月在同一快照上再筛一次
	month, err := aggregator.Aggregate(entries, aggregator.Filter{
		DateRange: aggregator.MonthRange(now.Year(), now.Month(), s.loc),
		WorkerID:  workerID,
	})
	if err != nil {
		return nil, err
	}
	return &UserStatistics{WorkerID: workerID, Month: month.Statistics(), AllTime: all.Statistics()}, nil
}

// MonthlySummary 月度汇总
type MonthlySummary struct {
	Year       int                   `json:"year"`
	Month      int                   `json:"month"`
	Statistics aggregator.Statistics `json:"statistics"`
}

// MonthlySummary 某月的汇总（按签到时间精确落在该月）
func (s *AttendanceService) MonthlySummary(ctx context.Context, year, month int) (*MonthlySummary, error) {
	if month < 1 || month > 12 || year < 1 {
		return nil, domain.ErrInvalidDateRange
	}
	f := aggregator.Filter{DateRange: aggregator.MonthRange(year, time.Month(month), s.loc)}
	entries, err := s.snapshot(ctx, f)
	if err != nil {
		return nil, err
	}
	sum, err := aggregator.Aggregate(entries, f)
	if err != nil {
		return nil, err
	}
	return &MonthlySummary{Year: year, Month: month, Statistics: sum.Statistics()}, nil
}

// ProjectStatistics 项目统计
type ProjectStatistics struct {
	Project    domain.Project        `json:"project"`
	Statistics aggregator.Statistics `json:"statistics"`
}

// ProjectStatistics 某项目在时间范围内的统计
func (s *AttendanceService) ProjectStatistics(ctx context.Context, projectID int64, r aggregator.DateRange) (*ProjectStatistics, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	st, err := s.Statistics(ctx, RecordsRequest{Range: r, ProjectID: domain.Int64Ptr(projectID)})
	if err != nil {
		return nil, err
	}
	return &ProjectStatistics{Project: *p, Statistics: *st}, nil
}

// Projects 进行中的项目，按项目编码排序
func (s *AttendanceService) Projects(ctx context.Context) ([]domain.Project, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx); err == nil {
			return cached, nil
		} else if !errors.Is(err, store.ErrMiss) {
			s.logger.Debug("Projects cache unavailable", zap.Error(err))
		}
	}
	projects, err := s.projects.ListProjects(ctx, true)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, projects); err != nil {
			s.logger.Debug("Failed to cache projects", zap.Error(err))
		}
	}
	return projects, nil
}
