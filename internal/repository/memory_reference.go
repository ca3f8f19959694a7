package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/GreaLake/checkIn/internal/domain"
)

// MemoryProjectsRepo 不连数据库时的项目参考表
type MemoryProjectsRepo struct {
	mu       sync.RWMutex
	projects map[int64]domain.Project
}

func NewMemoryProjectsRepo(projects ...domain.Project) *MemoryProjectsRepo {
	r := &MemoryProjectsRepo{projects: map[int64]domain.Project{}}
	for _, p := range projects {
		r.projects[p.ProjectID] = p
	}
	return r
}

var _ ProjectsRepository = (*MemoryProjectsRepo)(nil)

// PutProject 写入或替换项目
func (r *MemoryProjectsRepo) PutProject(p domain.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ProjectID] = p
}

func (r *MemoryProjectsRepo) ListProjects(_ context.Context, activeOnly bool) ([]domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Project, 0, len(r.projects))
	for _, p := range r.projects {
		if activeOnly && !p.Active() {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectCode < out[j].ProjectCode })
	return out, nil
}

func (r *MemoryProjectsRepo) GetProject(_ context.Context, projectID int64) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[projectID]
	if !ok {
		return nil, domain.ErrUnknownProject
	}
	return &p, nil
}

// MemoryWorkersRepo 不连数据库时的工人档案
type MemoryWorkersRepo struct {
	mu      sync.RWMutex
	workers map[string]domain.WorkerProfile
}

func NewMemoryWorkersRepo() *MemoryWorkersRepo {
	return &MemoryWorkersRepo{workers: map[string]domain.WorkerProfile{}}
}

var _ WorkersRepository = (*MemoryWorkersRepo)(nil)

func (r *MemoryWorkersRepo) UpsertWorker(_ context.Context, w domain.WorkerProfile) error {
	if w.WorkerID == "" {
		return domain.ErrMissingWorker
	}
	if w.Role == "" {
		w.Role = domain.RoleMember
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.WorkerID] = w
	return nil
}

func (r *MemoryWorkersRepo) GetWorker(_ context.Context, workerID string) (*domain.WorkerProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[workerID]
	if !ok {
		return nil, domain.ErrUnknownWorker
	}
	return &w, nil
}

func (r *MemoryWorkersRepo) ListTeamMembers(_ context.Context, teamID string) ([]domain.WorkerProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.WorkerProfile{}
	for _, w := range r.workers {
		if w.TeamID == teamID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}
