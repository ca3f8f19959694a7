package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GreaLake/checkIn/internal/domain"
)

// PostgresProjectsRepository 项目参考表
type PostgresProjectsRepository struct {
	db *sql.DB
}

func NewPostgresProjectsRepository(db *sql.DB) *PostgresProjectsRepository {
	return &PostgresProjectsRepository{db: db}
}

var _ ProjectsRepository = (*PostgresProjectsRepository)(nil)

func (r *PostgresProjectsRepository) ListProjects(ctx context.Context, activeOnly bool) ([]domain.Project, error) {
	query := `
		SELECT project_id, project_code, project_name, status
		FROM projects
	`
	if activeOnly {
		query += ` WHERE status = 'active'`
	}
	query += ` ORDER BY project_code`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapPQError(err, "list projects")
	}
	defer rows.Close()

	projects := []domain.Project{}
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ProjectID, &p.ProjectCode, &p.ProjectName, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPQError(err, "iterate projects")
	}
	return projects, nil
}

func (r *PostgresProjectsRepository) GetProject(ctx context.Context, projectID int64) (*domain.Project, error) {
	query := `
		SELECT project_id, project_code, project_name, status
		FROM projects
		WHERE project_id = $1
	`
	var p domain.Project
	err := r.db.QueryRowContext(ctx, query, projectID).Scan(&p.ProjectID, &p.ProjectCode, &p.ProjectName, &p.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnknownProject
		}
		return nil, mapPQError(err, "get project")
	}
	return &p, nil
}

// UpsertProject 按项目编码新增或更新；ProjectID 为 0 时由数据库分配
func (r *PostgresProjectsRepository) UpsertProject(ctx context.Context, p domain.Project) (int64, error) {
	if p.ProjectCode == "" || p.ProjectName == "" {
		return 0, fmt.Errorf("project code and name are required")
	}
	if p.Status == "" {
		p.Status = "active"
	}
	query := `
		INSERT INTO projects (project_code, project_name, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_code) DO UPDATE SET
			project_name = EXCLUDED.project_name,
			status = EXCLUDED.status
		RETURNING project_id
	`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, p.ProjectCode, p.ProjectName, p.Status).Scan(&id); err != nil {
		return 0, mapPQError(err, "upsert project")
	}
	return id, nil
}
