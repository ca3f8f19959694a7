package repository

import (
	"context"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"
)

// EntryFilters 打卡记录查询过滤器，零值字段不过滤
type EntryFilters struct {
	WorkerIDs     []string             // 工人ID（任一匹配）
	ActivityType  domain.ActivityType  // 打卡类型
	ProjectID     *int64               // 项目
	ApprovalState domain.ApprovalState // 审批状态
	ClosedOnly    bool                 // 只要已签退的记录
	From          *time.Time           // opened_at >= From
	To            *time.Time           // opened_at < To
}

// Decision 审批结果
type Decision struct {
	State        domain.ApprovalState
	WorkNote     string
	ApprovalNote string
	DecidedBy    string
	DecidedAt    time.Time
}

// EntriesRepository 打卡记录Repository接口
// 所有状态变更都是条件更新，一步完成，不存在部分写入
type EntriesRepository interface {
	// InsertOpenEntry 仅当该工人该类型没有未签退记录时插入（原子），否则返回 domain.ErrAlreadyOpen
	// 返回的记录带存储分配的 EntryID
	InsertOpenEntry(ctx context.Context, entry *domain.CheckEntry) (*domain.CheckEntry, error)

	// GetEntry 获取记录，不存在返回 domain.ErrNotFound
	GetEntry(ctx context.Context, entryID string) (*domain.CheckEntry, error)

	// ListOpenEntries 某工人全部未签退记录
	ListOpenEntries(ctx context.Context, workerID string) ([]*domain.CheckEntry, error)

	// CloseEntry 签退：仅当记录仍未签退时设置 closed_at 并进入待审批
	// projectID 只在记录尚未关联项目时写入
	// 已签退返回 domain.ErrAlreadyClosed，不存在返回 domain.ErrNotFound
	CloseEntry(ctx context.Context, entryID string, closedAt time.Time, projectID *int64) (*domain.CheckEntry, error)

	// DecideEntry 审批：仅当记录为待审批时写入结果，否则返回 domain.ErrNotPending
	DecideEntry(ctx context.Context, entryID string, d Decision) (*domain.CheckEntry, error)

	// ListEntries 按条件查询，签到时间倒序
	ListEntries(ctx context.Context, filters *EntryFilters) ([]*domain.CheckEntry, error)

	// CountByApprovalState 已签退记录按审批状态计数
	CountByApprovalState(ctx context.Context) (map[domain.ApprovalState]int, error)
}

// ProjectsRepository 项目参考表
type ProjectsRepository interface {
	// ListProjects 按项目编码排序；activeOnly 只返回进行中的项目
	ListProjects(ctx context.Context, activeOnly bool) ([]domain.Project, error)

	// GetProject 不存在返回 domain.ErrUnknownProject
	GetProject(ctx context.Context, projectID int64) (*domain.Project, error)
}

// WorkersRepository 工人档案（由身份信息同步）
type WorkersRepository interface {
	// UpsertWorker 写入或更新工人档案
	UpsertWorker(ctx context.Context, w domain.WorkerProfile) error

	// GetWorker 不存在返回 domain.ErrUnknownWorker
	GetWorker(ctx context.Context, workerID string) (*domain.WorkerProfile, error)

	// ListTeamMembers 班组内的全部工人，按 WorkerID 排序
	ListTeamMembers(ctx context.Context, teamID string) ([]domain.WorkerProfile, error)
}
