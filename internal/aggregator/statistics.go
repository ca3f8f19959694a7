package aggregator

import "github.com/GreaLake/checkIn/internal/worktime"

// Statistics 对外输出的统计结构（小时数）
type Statistics struct {
	TotalRecords      int                    `json:"totalRecords"`
	TotalHours        float64                `json:"totalHours"`
	ConstructionHours float64                `json:"constructionHours"`
	TravelHours       float64                `json:"travelHours"`
	StopHours         float64                `json:"stopHours"`
	TotalDisplay      string                 `json:"totalDisplay"`
	UserStats         map[string]WorkerStats `json:"userStats"`
	DailyRecords      map[string]int         `json:"dailyRecords"`
}

// WorkerStats 单个工人的统计（小时数）
type WorkerStats struct {
	WorkerID          string  `json:"userId"`
	WorkerName        string  `json:"userName"`
	TotalHours        float64 `json:"totalHours"`
	ConstructionHours float64 `json:"constructionHours"`
	TravelHours       float64 `json:"travelHours"`
	StopHours         float64 `json:"stopHours"`
	RecordCount       int     `json:"recordCount"`
}

// Statistics 转为小时数输出，userStats 以工人 ID 为键
func (s Summary) Statistics() Statistics {
	out := Statistics{
		TotalRecords:      s.TotalRecords,
		TotalHours:        s.Total.Hours(),
		ConstructionHours: s.ByType.Construction.Hours(),
		TravelHours:       s.ByType.Travel.Hours(),
		StopHours:         s.ByType.Stop.Hours(),
		TotalDisplay:      worktime.FormatDuration(s.Total),
		UserStats:         make(map[string]WorkerStats, len(s.Workers)),
		DailyRecords:      s.DailyRecords,
	}
	if out.DailyRecords == nil {
		out.DailyRecords = map[string]int{}
	}
	for _, w := range s.Workers {
		out.UserStats[w.WorkerID] = WorkerStats{
			WorkerID:          w.WorkerID,
			WorkerName:        w.WorkerName,
			TotalHours:        w.Total.Hours(),
			ConstructionHours: w.ByType.Construction.Hours(),
			TravelHours:       w.ByType.Travel.Hours(),
			StopHours:         w.ByType.Stop.Hours(),
			RecordCount:       w.RecordCount,
		}
	}
	return out
}
