// Package worktime 工时计算：签到/签退区间 → 工作时长
// 实时进度（未签退）和最终工时统计使用同一套计算
package worktime

import (
	"fmt"
	"math"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"
)

// Between 区间时长；end 早于 start 返回 ErrInvalidInterval
func Between(start, end time.Time) (time.Duration, error) {
	if end.Before(start) {
		return 0, domain.ErrInvalidInterval
	}
	return end.Sub(start), nil
}

// Hours 区间时长（小时，带小数）
func Hours(start, end time.Time) (float64, error) {
	d, err := Between(start, end)
	if err != nil {
		return 0, err
	}
	return d.Hours(), nil
}

// Elapsed 记录已工作时长：已签退用签退时间，未签退用 now
func Elapsed(e *domain.CheckEntry, now time.Time) (time.Duration, error) {
	end := now
	if e.ClosedAt != nil {
		end = *e.ClosedAt
	}
	return Between(e.OpenedAt, end)
}

// Format 小时数格式化为 "X小时Y分钟"
// 分钟四舍五入，满 60 进位到小时；非正数为 "0小时0分钟"
func Format(hours float64) string {
	if hours <= 0 || math.IsNaN(hours) {
		return "0小时0分钟"
	}
	whole := math.Floor(hours)
	minutes := math.Round((hours - whole) * 60)
	if minutes >= 60 {
		whole++
		minutes -= 60
	}
	return fmt.Sprintf("%d小时%d分钟", int64(whole), int64(minutes))
}

// FormatDuration 同 Format，入参为 time.Duration
func FormatDuration(d time.Duration) string {
	return Format(d.Hours())
}

// RoundHours 保留两位小数（报表导出用）
func RoundHours(hours float64) float64 {
	return math.Round(hours*100) / 100
}
