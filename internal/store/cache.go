package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"
)

const (
	openEntriesKeyPrefix = "checkin:open:"
	openGenKeyPrefix     = "checkin:opengen:"
	projectsKey          = "checkin:projects:active"
)

// 代数键保留时间远长于快照
const openGenTTL = 24 * time.Hour

// OpenEntriesCache 工人未签退记录快照缓存
// 只用于读；签到是否允许始终以存储层的原子插入为准
// 每个工人有一个代数，Invalidate 时自增；读库前取代数，写回时代数已变则放弃，
// 避免读库期间发生的签到/签退被旧快照覆盖
type OpenEntriesCache struct {
	kv  KV
	ttl time.Duration
}

func NewOpenEntriesCache(kv KV, ttl time.Duration) *OpenEntriesCache {
	return &OpenEntriesCache{kv: kv, ttl: ttl}
}

func (c *OpenEntriesCache) Get(ctx context.Context, workerID string) ([]*domain.CheckEntry, error) {
	raw, err := c.kv.Get(ctx, openEntriesKeyPrefix+workerID)
	if err != nil {
		return nil, err
	}
	var entries []*domain.CheckEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("invalid open entries cache for %s: %w", workerID, err)
	}
	return entries, nil
}

// Generation 当前代数，读库前调用；从未失效过的工人为 ""
func (c *OpenEntriesCache) Generation(ctx context.Context, workerID string) (string, error) {
	gen, err := c.kv.Get(ctx, openGenKeyPrefix+workerID)
	if errors.Is(err, ErrMiss) {
		return "", nil
	}
	return gen, err
}

// Put 代数仍为 gen 时写入快照，返回是否写入
func (c *OpenEntriesCache) Put(ctx context.Context, workerID, gen string, entries []*domain.CheckEntry) (bool, error) {
	b, err := json.Marshal(entries)
	if err != nil {
		return false, err
	}
	return c.kv.SetIfUnchanged(ctx, openGenKeyPrefix+workerID, gen, openEntriesKeyPrefix+workerID, string(b), c.ttl)
}

// Invalidate 先自增代数再删快照
func (c *OpenEntriesCache) Invalidate(ctx context.Context, workerID string) error {
	if _, err := c.kv.Incr(ctx, openGenKeyPrefix+workerID, openGenTTL); err != nil {
		return err
	}
	return c.kv.Delete(ctx, openEntriesKeyPrefix+workerID)
}

// Purge 清除全部快照（内存存储启动时使用，旧进程留下的快照已失效）
func (c *OpenEntriesCache) Purge(ctx context.Context) (int, error) {
	keys, err := c.kv.ScanKeys(ctx, openEntriesKeyPrefix+"*")
	if err != nil {
		return 0, err
	}
	if err := c.kv.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// ProjectsCache 进行中项目列表缓存
type ProjectsCache struct {
	kv  KV
	ttl time.Duration
}

func NewProjectsCache(kv KV, ttl time.Duration) *ProjectsCache {
	return &ProjectsCache{kv: kv, ttl: ttl}
}

func (c *ProjectsCache) Get(ctx context.Context) ([]domain.Project, error) {
	raw, err := c.kv.Get(ctx, projectsKey)
	if err != nil {
		return nil, err
	}
	var projects []domain.Project
	if err := json.Unmarshal([]byte(raw), &projects); err != nil {
		return nil, fmt.Errorf("invalid projects cache: %w", err)
	}
	return projects, nil
}

func (c *ProjectsCache) Put(ctx context.Context, projects []domain.Project) error {
	b, err := json.Marshal(projects)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, projectsKey, string(b), c.ttl)
}
