package domain

// ApprovalState 审批状态，仅在签退后有意义
type ApprovalState string

const (
	ApprovalNone     ApprovalState = ""         // 未签退
	ApprovalPending  ApprovalState = "pending"  // 待审批（签退时进入）
	ApprovalApproved ApprovalState = "approved" // 已通过（终态）
	ApprovalRejected ApprovalState = "rejected" // 已驳回（终态）
)

// ApprovalStates 三种审批视图
var ApprovalStates = []ApprovalState{ApprovalPending, ApprovalApproved, ApprovalRejected}

// ParseApprovalState 解析审批状态（不含 ApprovalNone）
func ParseApprovalState(s string) (ApprovalState, bool) {
	switch ApprovalState(s) {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return ApprovalState(s), true
	}
	return ApprovalNone, false
}

// Terminal 是否为终态
func (s ApprovalState) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}
