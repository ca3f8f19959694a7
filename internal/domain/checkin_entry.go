package domain

import "time"

// CheckEntry 一条打卡区间记录（对应 checkin_entries 表）
// 生命周期：签到创建（未签退、无审批字段）→ 签退（closedAt + pending）→ 审批一次（approved/rejected）→ 之后不可变
type CheckEntry struct {
	// 主键，由存储层在创建时分配
	EntryID string `db:"entry_id" json:"id"`

	// 所属工人
	WorkerID   string `db:"worker_id" json:"userId"`
	WorkerName string `db:"worker_name" json:"userName"`

	// 打卡类型
	ActivityType    ActivityType  `db:"activity_type" json:"type"`
	ActivitySubType TravelSubType `db:"activity_sub_type" json:"subType,omitempty"` // 仅 travel

	// 关联项目（施工/停工）；施工允许签退时补选
	ProjectID *int64 `db:"project_id" json:"projectId,omitempty"`

	Location Location `db:"location" json:"location"`

	OpenedAt time.Time  `db:"opened_at" json:"checkInTime"`
	ClosedAt *time.Time `db:"closed_at" json:"checkOutTime,omitempty"` // nil 表示未签退

	// 审批
	ApprovalState ApprovalState `db:"approval_state" json:"approvalState,omitempty"`
	WorkNote      string        `db:"work_note" json:"workContent,omitempty"`        // 审批通过时填写
	ApprovalNote  string        `db:"approval_note" json:"rejectionReason,omitempty"` // 驳回原因
	DecidedBy     string        `db:"decided_by" json:"decidedBy,omitempty"`
	DecidedAt     *time.Time    `db:"decided_at" json:"decidedAt,omitempty"`
}

// IsOpen 是否未签退
func (e *CheckEntry) IsOpen() bool {
	return e.ClosedAt == nil
}

// IsAttendance 已签退且审批通过的记录才计入考勤
func (e *CheckEntry) IsAttendance() bool {
	return e.ClosedAt != nil && e.ApprovalState == ApprovalApproved
}

// Label 类型名称（在途带子类型）
func (e *CheckEntry) Label() string {
	return EntryLabel(e.ActivityType, e.ActivitySubType)
}

// Clone 深拷贝，避免调用方修改存储中的记录
func (e *CheckEntry) Clone() *CheckEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.ProjectID != nil {
		p := *e.ProjectID
		c.ProjectID = &p
	}
	if e.ClosedAt != nil {
		t := *e.ClosedAt
		c.ClosedAt = &t
	}
	if e.DecidedAt != nil {
		t := *e.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}

// CheckInvariants 校验记录自身的一致性，用于存储层读出数据后的自检
func (e *CheckEntry) CheckInvariants() error {
	if e.ClosedAt != nil && !e.ClosedAt.After(e.OpenedAt) {
		return ErrInvalidInterval
	}
	if (e.ClosedAt == nil) != (e.ApprovalState == ApprovalNone) {
		return ErrInvalidInterval
	}
	if (e.ActivitySubType != "") != (e.ActivityType == ActivityTravel) {
		return ErrSubTypeNotAllowed
	}
	if e.ActivityType == ActivityTravel && e.ProjectID != nil {
		return ErrProjectNotAllowed
	}
	return nil
}

// Int64Ptr 辅助构造可选项目 ID
func Int64Ptr(v int64) *int64 { return &v }
