// Package aggregator 考勤统计：从记录快照中筛选已签退且审批通过的记录，按工人和类型汇总工时
// 纯函数，无隐藏状态；同一快照重复计算结果一致，与记录顺序无关
package aggregator

import (
	"sort"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"
	"github.com/GreaLake/checkIn/internal/worktime"
)

const day = 24 * time.Hour

// DateRange 日期范围（按天）
// 默认按签到时间落在 [Start-1天, End+1天) 判断；Exact 时为 [Start, End)
// 零值表示不限日期
type DateRange struct {
	Start time.Time
	End   time.Time
	Exact bool
}

// IsZero 是否未设置
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains 签到时间是否落在范围内
func (r DateRange) Contains(openedAt time.Time) bool {
	from, to := r.Bounds()
	if from != nil && openedAt.Before(*from) {
		return false
	}
	if to != nil && !openedAt.Before(*to) {
		return false
	}
	return true
}

// Bounds 实际生效的上下界（已含前后各一天的放宽），nil 表示该侧不限
func (r DateRange) Bounds() (from, to *time.Time) {
	if !r.Start.IsZero() {
		t := r.Start
		if !r.Exact {
			t = t.Add(-day)
		}
		from = &t
	}
	if !r.End.IsZero() {
		t := r.End
		if !r.Exact {
			t = t.Add(day)
		}
		to = &t
	}
	return from, to
}

// Validate 结束早于开始时返回 domain.ErrInvalidDateRange
func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return domain.ErrInvalidDateRange
	}
	return nil
}

// MonthRange 某月的精确范围 [1日 00:00, 下月1日 00:00)
func MonthRange(year int, month time.Month, loc *time.Location) DateRange {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return DateRange{Start: start, End: start.AddDate(0, 1, 0), Exact: true}
}

// Filter 统计过滤条件，空值表示不过滤
type Filter struct {
	DateRange    DateRange
	WorkerID     string
	ActivityType domain.ActivityType
	ProjectID    *int64
}

// Match 记录是否计入统计
func (f Filter) Match(e *domain.CheckEntry) bool {
	if e == nil || !e.IsAttendance() {
		return false
	}
	if !f.DateRange.Contains(e.OpenedAt) {
		return false
	}
	if f.WorkerID != "" && e.WorkerID != f.WorkerID {
		return false
	}
	if f.ActivityType != "" && e.ActivityType != f.ActivityType {
		return false
	}
	if f.ProjectID != nil && (e.ProjectID == nil || *e.ProjectID != *f.ProjectID) {
		return false
	}
	return true
}

// Select 筛选记录，按签到时间倒序（相同时间按 ID）
func Select(entries []*domain.CheckEntry, f Filter) []*domain.CheckEntry {
	out := make([]*domain.CheckEntry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.After(out[j].OpenedAt)
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out
}

// Buckets 按类型分桶的时长
type Buckets struct {
	Construction time.Duration
	Travel       time.Duration
	Stop         time.Duration
}

// Add 累加到对应类型；未知类型返回 false
func (b *Buckets) Add(t domain.ActivityType, d time.Duration) bool {
	switch t {
	case domain.ActivityConstruction:
		b.Construction += d
	case domain.ActivityTravel:
		b.Travel += d
	case domain.ActivityStop:
		b.Stop += d
	default:
		return false
	}
	return true
}

// Get 取某类型时长
func (b Buckets) Get(t domain.ActivityType) time.Duration {
	switch t {
	case domain.ActivityConstruction:
		return b.Construction
	case domain.ActivityTravel:
		return b.Travel
	case domain.ActivityStop:
		return b.Stop
	}
	return 0
}

// Total 三类合计
func (b Buckets) Total() time.Duration {
	return b.Construction + b.Travel + b.Stop
}

// WorkerSummary 单个工人的汇总
type WorkerSummary struct {
	WorkerID    string
	WorkerName  string
	RecordCount int
	Total       time.Duration
	ByType      Buckets
}

// Summary 汇总结果
type Summary struct {
	TotalRecords int
	Total        time.Duration
	ByType       Buckets
	Workers      []WorkerSummary // 按 WorkerID 排序
	DailyRecords map[string]int  // 签到日期(YYYY-MM-DD) → 记录数
}

// Worker 取某工人汇总
func (s Summary) Worker(workerID string) (WorkerSummary, bool) {
	i := sort.Search(len(s.Workers), func(i int) bool { return s.Workers[i].WorkerID >= workerID })
	if i < len(s.Workers) && s.Workers[i].WorkerID == workerID {
		return s.Workers[i], true
	}
	return WorkerSummary{}, false
}

// Aggregate 筛选并汇总
func Aggregate(entries []*domain.CheckEntry, f Filter) (Summary, error) {
	return Fold(Select(entries, f))
}

// Fold 汇总已筛选的记录（不再做筛选）
// 时长按整数纳秒累加，合计与分桶之和严格相等且与顺序无关
func Fold(entries []*domain.CheckEntry) (Summary, error) {
	s := Summary{DailyRecords: map[string]int{}}
	workers := map[string]*WorkerSummary{}
	nameAt := map[string]time.Time{}

	for _, e := range entries {
		if e.ClosedAt == nil {
			continue
		}
		d, err := worktime.Between(e.OpenedAt, *e.ClosedAt)
		if err != nil {
			return Summary{}, err
		}
		if !s.ByType.Add(e.ActivityType, d) {
			continue
		}
		s.TotalRecords++

		w, ok := workers[e.WorkerID]
		if !ok {
			w = &WorkerSummary{WorkerID: e.WorkerID}
			workers[e.WorkerID] = w
		}
		// 显示名以最近一次签到的记录为准
		if e.WorkerName != "" && (w.WorkerName == "" || e.OpenedAt.After(nameAt[e.WorkerID])) {
			w.WorkerName = e.WorkerName
			nameAt[e.WorkerID] = e.OpenedAt
		}
		w.RecordCount++
		w.ByType.Add(e.ActivityType, d)

		s.DailyRecords[e.OpenedAt.Format("2006-01-02")]++
	}

	s.Total = s.ByType.Total()
	s.Workers = make([]WorkerSummary, 0, len(workers))
	for _, w := range workers {
		w.Total = w.ByType.Total()
		s.Workers = append(s.Workers, *w)
	}
	sort.Slice(s.Workers, func(i, j int) bool { return s.Workers[i].WorkerID < s.Workers[j].WorkerID })
	return s, nil
}
