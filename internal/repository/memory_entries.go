package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"

	"github.com/google/uuid"
)

type openSlot struct {
	workerID     string
	activityType domain.ActivityType
}

// MemoryEntriesRepo 不连数据库时使用的打卡记录存储
// 单把锁保证"检查空位 + 插入"是一步完成的
type MemoryEntriesRepo struct {
	mu      sync.RWMutex
	entries map[string]*domain.CheckEntry // entryID -> entry
	open    map[openSlot]string           // 未签退槽位 -> entryID
}

func NewMemoryEntriesRepo() *MemoryEntriesRepo {
	return &MemoryEntriesRepo{
		entries: map[string]*domain.CheckEntry{},
		open:    map[openSlot]string{},
	}
}

var _ EntriesRepository = (*MemoryEntriesRepo)(nil)

func (r *MemoryEntriesRepo) InsertOpenEntry(_ context.Context, entry *domain.CheckEntry) (*domain.CheckEntry, error) {
	if entry == nil || entry.WorkerID == "" {
		return nil, domain.ErrMissingWorker
	}
	if !entry.IsOpen() {
		return nil, fmt.Errorf("entry to insert must be open")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slot := openSlot{workerID: entry.WorkerID, activityType: entry.ActivityType}
	if _, taken := r.open[slot]; taken {
		return nil, domain.ErrAlreadyOpen
	}

	e := entry.Clone()
	e.EntryID = uuid.NewString()
	e.ApprovalState = domain.ApprovalNone
	r.entries[e.EntryID] = e
	r.open[slot] = e.EntryID
	return e.Clone(), nil
}

func (r *MemoryEntriesRepo) GetEntry(_ context.Context, entryID string) (*domain.CheckEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[entryID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.Clone(), nil
}

func (r *MemoryEntriesRepo) ListOpenEntries(_ context.Context, workerID string) ([]*domain.CheckEntry, error) {
	if workerID == "" {
		return nil, domain.ErrMissingWorker
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.CheckEntry{}
	for slot, id := range r.open {
		if slot.workerID == workerID {
			out = append(out, r.entries[id].Clone())
		}
	}
	sortEntries(out)
	return out, nil
}

func (r *MemoryEntriesRepo) CloseEntry(_ context.Context, entryID string, closedAt time.Time, projectID *int64) (*domain.CheckEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[entryID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !e.IsOpen() {
		return nil, domain.ErrAlreadyClosed
	}
	if !closedAt.After(e.OpenedAt) {
		return nil, domain.ErrCheckoutBeforeOpen
	}

	t := closedAt
	e.ClosedAt = &t
	e.ApprovalState = domain.ApprovalPending
	if e.ProjectID == nil && projectID != nil {
		e.ProjectID = domain.Int64Ptr(*projectID)
	}
	delete(r.open, openSlot{workerID: e.WorkerID, activityType: e.ActivityType})
	return e.Clone(), nil
}

func (r *MemoryEntriesRepo) DecideEntry(_ context.Context, entryID string, d Decision) (*domain.CheckEntry, error) {
	if !d.State.Terminal() {
		return nil, fmt.Errorf("invalid decision state: %q", d.State)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[entryID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if e.ApprovalState != domain.ApprovalPending {
		return nil, domain.ErrNotPending
	}

	t := d.DecidedAt
	e.ApprovalState = d.State
	e.WorkNote = d.WorkNote
	e.ApprovalNote = d.ApprovalNote
	e.DecidedBy = d.DecidedBy
	e.DecidedAt = &t
	return e.Clone(), nil
}

func (r *MemoryEntriesRepo) ListEntries(_ context.Context, filters *EntryFilters) ([]*domain.CheckEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.CheckEntry{}
	for _, e := range r.entries {
		if filters.match(e) {
			out = append(out, e.Clone())
		}
	}
	sortEntries(out)
	return out, nil
}

func (r *MemoryEntriesRepo) CountByApprovalState(_ context.Context) (map[domain.ApprovalState]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.ApprovalState]int, len(domain.ApprovalStates))
	for _, s := range domain.ApprovalStates {
		counts[s] = 0
	}
	for _, e := range r.entries {
		if !e.IsOpen() {
			counts[e.ApprovalState]++
		}
	}
	return counts, nil
}

// match 与 PostgresEntriesRepository.ListEntries 的 WHERE 条件一致
func (f *EntryFilters) match(e *domain.CheckEntry) bool {
	if f == nil {
		return true
	}
	if len(f.WorkerIDs) > 0 {
		found := false
		for _, id := range f.WorkerIDs {
			if id == e.WorkerID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ActivityType != "" && e.ActivityType != f.ActivityType {
		return false
	}
	if f.ProjectID != nil && (e.ProjectID == nil || *e.ProjectID != *f.ProjectID) {
		return false
	}
	if f.ApprovalState != domain.ApprovalNone && e.ApprovalState != f.ApprovalState {
		return false
	}
	if f.ClosedOnly && e.IsOpen() {
		return false
	}
	if f.From != nil && e.OpenedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.OpenedAt.Before(*f.To) {
		return false
	}
	return true
}

func sortEntries(entries []*domain.CheckEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].OpenedAt.Equal(entries[j].OpenedAt) {
			return entries[i].OpenedAt.After(entries[j].OpenedAt)
		}
		return entries[i].EntryID < entries[j].EntryID
	})
}
