package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GreaLake/checkIn/internal/domain"
)

// PostgresWorkersRepository 工人档案
type PostgresWorkersRepository struct {
	db *sql.DB
}

func NewPostgresWorkersRepository(db *sql.DB) *PostgresWorkersRepository {
	return &PostgresWorkersRepository{db: db}
}

var _ WorkersRepository = (*PostgresWorkersRepository)(nil)

func (r *PostgresWorkersRepository) UpsertWorker(ctx context.Context, w domain.WorkerProfile) error {
	if w.WorkerID == "" {
		return domain.ErrMissingWorker
	}
	if w.Role == "" {
		w.Role = domain.RoleMember
	}
	query := `
		INSERT INTO workers (worker_id, display_name, role, team_id, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			role = EXCLUDED.role,
			team_id = EXCLUDED.team_id,
			updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, w.WorkerID, w.DisplayName, string(w.Role), w.TeamID); err != nil {
		return mapPQError(err, "upsert worker")
	}
	return nil
}

func (r *PostgresWorkersRepository) GetWorker(ctx context.Context, workerID string) (*domain.WorkerProfile, error) {
	query := `
		SELECT worker_id, display_name, role, team_id
		FROM workers
		WHERE worker_id = $1
	`
	var w domain.WorkerProfile
	var role string
	err := r.db.QueryRowContext(ctx, query, workerID).Scan(&w.WorkerID, &w.DisplayName, &role, &w.TeamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnknownWorker
		}
		return nil, mapPQError(err, "get worker")
	}
	w.Role = domain.ParseRole(role)
	return &w, nil
}

func (r *PostgresWorkersRepository) ListTeamMembers(ctx context.Context, teamID string) ([]domain.WorkerProfile, error) {
	query := `
		SELECT worker_id, display_name, role, team_id
		FROM workers
		WHERE team_id = $1
		ORDER BY worker_id
	`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, mapPQError(err, "list team members")
	}
	defer rows.Close()

	members := []domain.WorkerProfile{}
	for rows.Next() {
		var w domain.WorkerProfile
		var role string
		if err := rows.Scan(&w.WorkerID, &w.DisplayName, &role, &w.TeamID); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		w.Role = domain.ParseRole(role)
		members = append(members, w)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPQError(err, "iterate workers")
	}
	return members, nil
}
