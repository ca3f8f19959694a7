package domain

// Role 工人角色：队员或队长
type Role string

const (
	RoleMember Role = "member" // 队员
	RoleLead   Role = "lead"   // 队长
)

// ParseRole 解析角色，兼容原系统的中文角色名
func ParseRole(s string) Role {
	switch s {
	case "lead", "队长":
		return RoleLead
	default:
		return RoleMember
	}
}

// WorkerProfile 工人身份（由身份/会话服务提供）
type WorkerProfile struct {
	WorkerID    string `db:"worker_id" json:"id"`
	DisplayName string `db:"display_name" json:"name"`
	Role        Role   `db:"role" json:"role"`
	TeamID      string `db:"team_id" json:"teamId,omitempty"`
}

// IsLead 是否可以查看团队视图和审批
func (w WorkerProfile) IsLead() bool {
	return w.Role == RoleLead
}
