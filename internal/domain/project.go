package domain

// Project 项目参考表（对应 projects 表）
type Project struct {
	ProjectID   int64  `db:"project_id" json:"id"`
	ProjectCode string `db:"project_code" json:"projectCode"`
	ProjectName string `db:"project_name" json:"projectName"`
	Status      string `db:"status" json:"status,omitempty"` // 'active'/'inactive'
}

// Active 是否启用
func (p Project) Active() bool {
	return p.Status == "" || p.Status == "active"
}
