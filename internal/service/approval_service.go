package service

import (
	"context"
	"strings"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"
	"github.com/GreaLake/checkIn/internal/repository"

	"go.uber.org/zap"
)

// ApprovalService 审批：pending → approved | rejected，决定后不可更改
type ApprovalService struct {
	entries repository.EntriesRepository
	events  EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewApprovalService 创建审批服务
func NewApprovalService(entries repository.EntriesRepository, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		entries: entries,
		events:  NopPublisher{},
		logger:  logger,
		now:     time.Now,
	}
}

func (s *ApprovalService) SetEvents(p EventPublisher) { s.events = p }

func (s *ApprovalService) SetClock(now func() time.Time) { s.now = now }

// DecideRequest 审批请求
type DecideRequest struct {
	EntryID  string
	Note     string // 通过时为工作内容，驳回时为驳回原因
	Approver domain.WorkerProfile
}

// Approve 审批通过，必须填写工作内容
func (s *ApprovalService) Approve(ctx context.Context, req DecideRequest) (*domain.CheckEntry, error) {
	return s.decide(ctx, req, domain.ApprovalApproved)
}

// Reject 驳回，必须填写原因
func (s *ApprovalService) Reject(ctx context.Context, req DecideRequest) (*domain.CheckEntry, error) {
	return s.decide(ctx, req, domain.ApprovalRejected)
}

func (s *ApprovalService) decide(ctx context.Context, req DecideRequest, state domain.ApprovalState) (*domain.CheckEntry, error) {
	entry, err := s.entries.GetEntry(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.ApprovalState != domain.ApprovalPending {
		return nil, domain.ErrNotPending
	}

	note := strings.TrimSpace(req.Note)
	d := repository.Decision{
		State:     state,
		DecidedBy: req.Approver.DisplayName,
		DecidedAt: s.now(),
	}
	if d.DecidedBy == "" {
		d.DecidedBy = req.Approver.WorkerID
	}
	if state == domain.ApprovalApproved {
		if note == "" {
			return nil, domain.ErrMissingNote
		}
		d.WorkNote = note
	} else {
		if note == "" {
			return nil, domain.ErrMissingReason
		}
		d.ApprovalNote = note
	}

	decided, err := s.entries.DecideEntry(ctx, entry.EntryID, d)
	if err != nil {
		logFailure(s.logger, "Approval rejected", err, zap.String("entry_id", entry.EntryID), zap.String("decision", string(state)))
		return nil, err
	}

	evType := EventApproved
	if state == domain.ApprovalRejected {
		evType = EventRejected
	}
	publish(ctx, s.events, s.logger, newEvent(evType, decided, d.DecidedAt))

	s.logger.Info("Entry decided",
		zap.String("entry_id", decided.EntryID),
		zap.String("worker_id", decided.WorkerID),
		zap.String("decision", string(state)),
		zap.String("decided_by", d.DecidedBy),
	)
	return decided, nil
}

// ListApprovalsRequest 审批列表查询
type ListApprovalsRequest struct {
	WorkerIDs []string
	From      *time.Time
	To        *time.Time
}

// ListPending 待审批（只含已签退记录）
func (s *ApprovalService) ListPending(ctx context.Context, req ListApprovalsRequest) ([]*domain.CheckEntry, error) {
	return s.list(ctx, domain.ApprovalPending, req)
}

// ListApproved 已通过
func (s *ApprovalService) ListApproved(ctx context.Context, req ListApprovalsRequest) ([]*domain.CheckEntry, error) {
	return s.list(ctx, domain.ApprovalApproved, req)
}

// ListRejected 已驳回
func (s *ApprovalService) ListRejected(ctx context.Context, req ListApprovalsRequest) ([]*domain.CheckEntry, error) {
	return s.list(ctx, domain.ApprovalRejected, req)
}

// List 按审批状态查询；三个状态的结果互不重叠，未签退记录不出现在任何一个里
func (s *ApprovalService) List(ctx context.Context, state domain.ApprovalState, req ListApprovalsRequest) ([]*domain.CheckEntry, error) {
	if !state.Terminal() && state != domain.ApprovalPending {
		return nil, domain.ErrUnknownState
	}
	return s.list(ctx, state, req)
}

func (s *ApprovalService) list(ctx context.Context, state domain.ApprovalState, req ListApprovalsRequest) ([]*domain.CheckEntry, error) {
	return s.entries.ListEntries(ctx, &repository.EntryFilters{
		WorkerIDs:     req.WorkerIDs,
		ApprovalState: state,
		ClosedOnly:    true,
		From:          req.From,
		To:            req.To,
	})
}

// ApprovalCounts 各审批状态数量
type ApprovalCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}

// Counts 审批统计
func (s *ApprovalService) Counts(ctx context.Context) (*ApprovalCounts, error) {
	m, err := s.entries.CountByApprovalState(ctx)
	if err != nil {
		return nil, err
	}
	c := &ApprovalCounts{
		Pending:  m[domain.ApprovalPending],
		Approved: m[domain.ApprovalApproved],
		Rejected: m[domain.ApprovalRejected],
	}
	c.Total = c.Pending + c.Approved + c.Rejected
	return c, nil
}
