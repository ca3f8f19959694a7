package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"
	"github.com/GreaLake/checkIn/internal/location"
	"github.com/GreaLake/checkIn/internal/repository"
	"github.com/GreaLake/checkIn/internal/store"
	"github.com/GreaLake/checkIn/internal/worktime"

	"go.uber.org/zap"
)

// SessionTracker 签到/签退
// 同一工人同一类型最多一条未签退记录，由存储层的原子插入保证；不同类型互不影响
// 忘记签退的记录一直保持未签退，不会自动关闭
type SessionTracker struct {
	entries  repository.EntriesRepository
	projects repository.ProjectsRepository
	workers  repository.WorkersRepository
	cache    *store.OpenEntriesCache
	probe    *location.Probe
	events   EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionTracker 创建签到服务
func NewSessionTracker(
	entries repository.EntriesRepository,
	projects repository.ProjectsRepository,
	workers repository.WorkersRepository,
	logger *zap.Logger,
) *SessionTracker {
	return &SessionTracker{
		entries:  entries,
		projects: projects,
		workers:  workers,
		events:   NopPublisher{},
		logger:   logger,
		now:      time.Now,
	}
}

// SetCache 启用未签退快照缓存
func (s *SessionTracker) SetCache(c *store.OpenEntriesCache) { s.cache = c }

// SetProbe 请求未带位置时由服务端定位
func (s *SessionTracker) SetProbe(p *location.Probe) { s.probe = p }

// SetEvents 设置事件发布
func (s *SessionTracker) SetEvents(p EventPublisher) { s.events = p }

// SetClock 替换时钟（测试用）
func (s *SessionTracker) SetClock(now func() time.Time) { s.now = now }

// CheckInRequest 签到请求
type CheckInRequest struct {
	Worker          domain.WorkerProfile
	ActivityType    string
	ActivitySubType string
	ProjectID       *int64
	DeferProject    bool             // 施工打卡暂不选项目，签退时补选
	Location        *domain.Location // nil 时服务端定位
	At              time.Time        // 零值取当前时间
}

// CheckIn 签到
// 先做全部校验，再一次性原子写入；失败时不会留下任何记录
func (s *SessionTracker) CheckIn(ctx context.Context, req CheckInRequest) (*domain.CheckEntry, error) {
	if strings.TrimSpace(req.Worker.WorkerID) == "" {
		return nil, domain.ErrMissingWorker
	}
	activityType, ok := domain.ParseActivityType(req.ActivityType)
	if !ok {
		return nil, domain.ErrUnknownType
	}

	entry := &domain.CheckEntry{
		WorkerID:     req.Worker.WorkerID,
		WorkerName:   req.Worker.DisplayName,
		ActivityType: activityType,
	}

	if activityType.RequiresSubType() {
		if req.ActivitySubType == "" {
			return nil, domain.ErrMissingSubType
		}
		subType, ok := domain.ParseTravelSubType(req.ActivitySubType)
		if !ok {
			return nil, domain.ErrUnknownSubType
		}
		entry.ActivitySubType = subType
	} else if req.ActivitySubType != "" {
		return nil, domain.ErrSubTypeNotAllowed
	}

	switch {
	case !activityType.RequiresProject():
		if req.ProjectID != nil {
			return nil, domain.ErrProjectNotAllowed
		}
		if req.DeferProject {
			return nil, domain.ErrDeferNotAllowed
		}
	case req.ProjectID != nil:
		if err := s.checkProject(ctx, *req.ProjectID); err != nil {
			return nil, err
		}
		entry.ProjectID = domain.Int64Ptr(*req.ProjectID)
	case req.DeferProject && activityType.AllowsDeferredProject():
		// 签退时补选
	case req.DeferProject:
		return nil, domain.ErrDeferNotAllowed
	default:
		return nil, domain.ErrMissingProject
	}

	entry.OpenedAt = req.At
	if entry.OpenedAt.IsZero() {
		entry.OpenedAt = s.now()
	}

	loc, err := s.resolveLocation(ctx, req)
	if err != nil {
		return nil, err
	}
	entry.Location = loc

	if s.workers != nil {
		if err := s.workers.UpsertWorker(ctx, req.Worker); err != nil {
			s.logger.Warn("Failed to sync worker profile", zap.String("worker_id", req.Worker.WorkerID), zap.Error(err))
		}
	}

	created, err := s.entries.InsertOpenEntry(ctx, entry)
	if err != nil {
		s.logFailure("Check-in rejected", err,
			zap.String("worker_id", entry.WorkerID),
			zap.String("activity_type", string(activityType)),
		)
		return nil, err
	}

	s.invalidate(ctx, created.WorkerID)
	publish(ctx, s.events, s.logger, newEvent(EventCheckedIn, created, created.OpenedAt))

	s.logger.Info("Checked in",
		zap.String("entry_id", created.EntryID),
		zap.String("worker_id", created.WorkerID),
		zap.String("activity", created.Label()),
		zap.String("location", created.Location.String()),
	)
	return created, nil
}

// resolveLocation 请求带位置时直接使用；否则服务端定位，定位失败不阻止签到
func (s *SessionTracker) resolveLocation(ctx context.Context, req CheckInRequest) (domain.Location, error) {
	if req.Location != nil && req.Location.Kind != "" {
		return *req.Location, nil
	}
	if s.probe == nil {
		return domain.LocationFailed("位置获取失败", ""), nil
	}
	return s.probe.Acquire(ctx, req.Worker.WorkerID)
}

func (s *SessionTracker) checkProject(ctx context.Context, projectID int64) error {
	if s.projects == nil {
		return nil
	}
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !p.Active() {
		return domain.ErrUnknownProject
	}
	return nil
}

// CheckOutRequest 签退请求
type CheckOutRequest struct {
	EntryID   string
	WorkerID  string // 非空时只允许签退本人的记录
	ProjectID *int64 // 只在施工打卡签到时未选项目的情况下使用
	At        time.Time
}

// CheckOut 签退：记录进入待审批
// 已签退返回 ErrAlreadyClosed 且不做任何修改；签到时未选项目的施工记录必须在此补选项目
func (s *SessionTracker) CheckOut(ctx context.Context, req CheckOutRequest) (*domain.CheckEntry, error) {
	entry, err := s.entries.GetEntry(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	if req.WorkerID != "" && entry.WorkerID != req.WorkerID {
		return nil, domain.ErrNotFound
	}
	if !entry.IsOpen() {
		return nil, domain.ErrAlreadyClosed
	}

	at := req.At
	if at.IsZero() {
		at = s.now()
	}
	if !at.After(entry.OpenedAt) {
		return nil, domain.ErrCheckoutBeforeOpen
	}

	var projectID *int64
	if entry.ActivityType.RequiresProject() && entry.ProjectID == nil {
		if req.ProjectID == nil {
			return nil, domain.ErrMissingProject
		}
		if err := s.checkProject(ctx, *req.ProjectID); err != nil {
			return nil, err
		}
		projectID = req.ProjectID
	}

	closed, err := s.entries.CloseEntry(ctx, entry.EntryID, at, projectID)
	if err != nil {
		s.logFailure("Check-out rejected", err, zap.String("entry_id", entry.EntryID))
		return nil, err
	}

	s.invalidate(ctx, closed.WorkerID)
	s.stopMonitorIfIdle(ctx, closed.WorkerID)
	publish(ctx, s.events, s.logger, newEvent(EventCheckedOut, closed, at))

	hours, _ := worktime.Hours(closed.OpenedAt, at)
	s.logger.Info("Checked out",
		zap.String("entry_id", closed.EntryID),
		zap.String("worker_id", closed.WorkerID),
		zap.String("activity", closed.Label()),
		zap.String("duration", worktime.Format(hours)),
	)
	return closed, nil
}

// CheckOutByType 签退工人某类型当前未签退的记录，没有则返回 ErrNotFound
// 直接查存储，不读快照缓存
func (s *SessionTracker) CheckOutByType(ctx context.Context, workerID, activityType string, projectID *int64, at time.Time) (*domain.CheckEntry, error) {
	t, ok := domain.ParseActivityType(activityType)
	if !ok {
		return nil, domain.ErrUnknownType
	}
	if workerID == "" {
		return nil, domain.ErrMissingWorker
	}
	entries, err := s.entries.ListOpenEntries(ctx, workerID)
	if err != nil {
		return nil, err
	}
	open := domain.OpenEntriesFrom(entries)
	e := open.Get(t)
	if e == nil {
		return nil, domain.ErrNotFound
	}
	return s.CheckOut(ctx, CheckOutRequest{EntryID: e.EntryID, WorkerID: workerID, ProjectID: projectID, At: at})
}

// GetOpenEntries 工人当前各类型的未签退记录
func (s *SessionTracker) GetOpenEntries(ctx context.Context, workerID string) (domain.OpenEntries, error) {
	if workerID == "" {
		return domain.OpenEntries{}, domain.ErrMissingWorker
	}

	gen, cacheable := "", false
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, workerID)
		if err == nil {
			return domain.OpenEntriesFrom(cached), nil
		}
		if !errors.Is(err, store.ErrMiss) {
			s.logger.Debug("Open entries cache unavailable", zap.String("worker_id", workerID), zap.Error(err))
		}
		// 代数必须在读库之前取
		if gen, err = s.cache.Generation(ctx, workerID); err == nil {
			cacheable = true
		}
	}

	entries, err := s.entries.ListOpenEntries(ctx, workerID)
	if err != nil {
		return domain.OpenEntries{}, err
	}
	if cacheable {
		stored, err := s.cache.Put(ctx, workerID, gen, entries)
		switch {
		case err != nil:
			s.logger.Debug("Failed to cache open entries", zap.String("worker_id", workerID), zap.Error(err))
		case !stored:
			s.logger.Debug("Open entries changed while loading, snapshot not cached", zap.String("worker_id", workerID))
		}
	}
	return domain.OpenEntriesFrom(entries), nil
}

// GetOpenEntry 工人某类型的未签退记录，没有返回 nil
func (s *SessionTracker) GetOpenEntry(ctx context.Context, workerID, activityType string) (*domain.CheckEntry, error) {
	t, ok := domain.ParseActivityType(activityType)
	if !ok {
		return nil, domain.ErrUnknownType
	}
	open, err := s.GetOpenEntries(ctx, workerID)
	if err != nil {
		return nil, err
	}
	return open.Get(t), nil
}

// ElapsedSoFar 已工作时长：未签退按当前时间计算
func (s *SessionTracker) ElapsedSoFar(e *domain.CheckEntry) (time.Duration, error) {
	return worktime.Elapsed(e, s.now())
}

// SlotStatus 某类型的签到状态
type SlotStatus struct {
	ActivityType   domain.ActivityType `json:"type"`
	Label          string              `json:"label"`
	Color          string              `json:"color"`
	CheckedIn      bool                `json:"checkedIn"`
	Entry          *domain.CheckEntry  `json:"entry,omitempty"`
	ElapsedHours   float64             `json:"elapsedHours,omitempty"`
	ElapsedDisplay string              `json:"elapsedDisplay,omitempty"`
}

// OpenStatusResponse 工人签到状态（固定三类，按 ActivityTypes 顺序）
type OpenStatusResponse struct {
	WorkerID string       `json:"userId"`
	Slots    []SlotStatus `json:"slots"`
}

// OpenStatus 工人签到状态，带实时工作时长
func (s *SessionTracker) OpenStatus(ctx context.Context, workerID string) (*OpenStatusResponse, error) {
	open, err := s.GetOpenEntries(ctx, workerID)
	if err != nil {
		return nil, err
	}
	resp := &OpenStatusResponse{WorkerID: workerID, Slots: make([]SlotStatus, 0, len(domain.ActivityTypes))}
	for _, t := range domain.ActivityTypes {
		slot := SlotStatus{ActivityType: t, Label: t.Label(), Color: t.Color()}
		if e := open.Get(t); e != nil {
			slot.CheckedIn = true
			slot.Entry = e
			if d, err := s.ElapsedSoFar(e); err == nil {
				slot.ElapsedHours = worktime.RoundHours(d.Hours())
				slot.ElapsedDisplay = worktime.FormatDuration(d)
			} else {
				s.logger.Warn("Open entry starts in the future", zap.String("entry_id", e.EntryID), zap.Time("opened_at", e.OpenedAt))
			}
		}
		resp.Slots = append(resp.Slots, slot)
	}
	return resp, nil
}

// MemberStatus 团队成员签到状态
type MemberStatus struct {
	Worker domain.WorkerProfile `json:"user"`
	Status *OpenStatusResponse  `json:"status"`
}

// TeamStatus 队长查看本队成员（不含自己）的签到状态
func (s *SessionTracker) TeamStatus(ctx context.Context, lead domain.WorkerProfile) ([]MemberStatus, error) {
	members, err := s.teamMembers(ctx, lead)
	if err != nil {
		return nil, err
	}
	out := make([]MemberStatus, 0, len(members))
	for _, m := range members {
		st, err := s.OpenStatus(ctx, m.WorkerID)
		if err != nil {
			return nil, err
		}
		out = append(out, MemberStatus{Worker: m, Status: st})
	}
	return out, nil
}

// TeamRecordsRequest 团队记录查询
type TeamRecordsRequest struct {
	Lead     domain.WorkerProfile
	WorkerID string // 只看某个成员
	From     *time.Time
	To       *time.Time
}

// TeamRecords 本队成员的全部记录（含未签退），签到时间倒序
func (s *SessionTracker) TeamRecords(ctx context.Context, req TeamRecordsRequest) ([]*domain.CheckEntry, error) {
	members, err := s.teamMembers(ctx, req.Lead)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if req.WorkerID == "" || m.WorkerID == req.WorkerID {
			ids = append(ids, m.WorkerID)
		}
	}
	if len(ids) == 0 {
		return []*domain.CheckEntry{}, nil
	}
	return s.entries.ListEntries(ctx, &repository.EntryFilters{WorkerIDs: ids, From: req.From, To: req.To})
}

func (s *SessionTracker) teamMembers(ctx context.Context, lead domain.WorkerProfile) ([]domain.WorkerProfile, error) {
	if !lead.IsLead() {
		return nil, domain.ErrNotLead
	}
	if s.workers == nil {
		return []domain.WorkerProfile{}, nil
	}
	all, err := s.workers.ListTeamMembers(ctx, lead.TeamID)
	if err != nil {
		return nil, err
	}
	members := make([]domain.WorkerProfile, 0, len(all))
	for _, m := range all {
		if m.WorkerID != lead.WorkerID {
			members = append(members, m)
		}
	}
	return members, nil
}

func (s *SessionTracker) invalidate(ctx context.Context, workerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, workerID); err != nil {
		s.logger.Warn("Failed to invalidate open entries cache", zap.String("worker_id", workerID), zap.Error(err))
	}
}

// stopMonitorIfIdle 工人没有未签退记录时停止位置监听
func (s *SessionTracker) stopMonitorIfIdle(ctx context.Context, workerID string) {
	if s.probe == nil || !s.probe.Monitoring(workerID) {
		return
	}
	open, err := s.entries.ListOpenEntries(ctx, workerID)
	if err != nil {
		s.logger.Debug("Failed to check open entries for location monitor", zap.String("worker_id", workerID), zap.Error(err))
		return
	}
	if len(open) == 0 {
		s.probe.StopMonitoring(workerID)
	}
}

// logFailure 业务规则失败记 Warn，存储故障记 Error
func (s *SessionTracker) logFailure(msg string, err error, fields ...zap.Field) {
	logFailure(s.logger, msg, err, fields...)
}

func logFailure(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("code", domain.CodeOf(err)), zap.Error(err))
	switch domain.KindOf(err) {
	case domain.KindTransport, domain.KindInternal:
		logger.Error(msg, fields...)
	default:
		logger.Warn(msg, fields...)
	}
}
