// Package location 签到定位：高精度优先、低精度兜底的两级定位，以及定位失败的分类描述
// 定位只是签到的附加信息，任何失败都降级为描述文字，不阻止签到
package location

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Request 单次定位请求参数
type Request struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration // 可接受的缓存位置最大年龄
}

// Position 定位结果
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // 米，0 表示未知
	Timestamp time.Time
}

// ErrorCode 定位失败原因
type ErrorCode int

const (
	CodeUnknown             ErrorCode = 0
	CodePermissionDenied    ErrorCode = 1
	CodePositionUnavailable ErrorCode = 2
	CodeTimeout             ErrorCode = 3
)

func (c ErrorCode) String() string {
	switch c {
	case CodePermissionDenied:
		return "permission_denied"
	case CodePositionUnavailable:
		return "position_unavailable"
	case CodeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// PositionError 定位源返回的失败
type PositionError struct {
	Code    ErrorCode
	Message string
}

func (e *PositionError) Error() string {
	if e.Message == "" {
		return "location: " + e.Code.String()
	}
	return fmt.Sprintf("location: %s: %s", e.Code, e.Message)
}

// Source 定位源
// 实现需要遵守 ctx：超时返回 CodeTimeout，调用方取消时返回 ctx.Err()
type Source interface {
	CurrentPosition(ctx context.Context, workerID string, req Request) (Position, error)
}

// SourceFunc 函数适配为 Source
type SourceFunc func(ctx context.Context, workerID string, req Request) (Position, error)

func (f SourceFunc) CurrentPosition(ctx context.Context, workerID string, req Request) (Position, error) {
	return f(ctx, workerID, req)
}

const (
	reasonPermissionDenied = "位置权限被拒绝，请在浏览器设置中允许位置访问"
	reasonUnavailable      = "位置信息不可用，请检查GPS或网络连接"
	reasonTimeout          = "获取位置超时，请重试"
	reasonNoSource         = "设备不支持地理定位功能"

	// HintPermissionDenied 权限被拒绝时给用户的处理指引
	HintPermissionDenied = "请按以下步骤开启位置权限：1. 点击地址栏左侧的锁形图标 2. 找到\"位置\"选项 3. 选择\"允许\" 4. 刷新页面重试"
)

// CodeOf 提取失败原因；ctx 超时视为 CodeTimeout
func CodeOf(err error) ErrorCode {
	var pe *PositionError
	if errors.As(err, &pe) {
		return pe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeUnknown
}

// Describe 把定位失败转为面向用户的原因和处理提示（只有权限问题带提示）
func Describe(err error) (reason, hint string) {
	switch CodeOf(err) {
	case CodePermissionDenied:
		return reasonPermissionDenied, HintPermissionDenied
	case CodePositionUnavailable:
		return reasonUnavailable, ""
	case CodeTimeout:
		return reasonTimeout, ""
	}
	msg := "unknown error"
	var pe *PositionError
	if errors.As(err, &pe) && pe.Message != "" {
		msg = pe.Message
	} else if err != nil {
		msg = err.Error()
	}
	return "位置获取失败: " + msg, ""
}

// timeoutError ctx 结束时的统一错误：到期为超时，主动取消原样返回
func timeoutError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &PositionError{Code: CodeTimeout, Message: "timed out waiting for position"}
	}
	return ctx.Err()
}
