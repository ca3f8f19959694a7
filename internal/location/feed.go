package location

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 设备上报状态
const (
	ReportOK          = "ok"
	ReportDenied      = "denied"
	ReportUnavailable = "unavailable"
)

// Report 终端上报的一条位置消息（MQTT / HTTP 共用）
//
//	{"worker_id":"u1","latitude":31.123456,"longitude":121.654321,"accuracy":15,"timestamp":1714550400000,"status":"ok"}
type Report struct {
	WorkerID  string  `json:"worker_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"` // 毫秒
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
}

func (r Report) time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

func (r Report) position() Position {
	return Position{Latitude: r.Latitude, Longitude: r.Longitude, Accuracy: r.Accuracy, Timestamp: r.time()}
}

// err 非 ok 状态转为定位错误
func (r Report) err() error {
	switch r.Status {
	case "", ReportOK:
		return nil
	case ReportDenied:
		return &PositionError{Code: CodePermissionDenied, Message: r.Message}
	case ReportUnavailable:
		return &PositionError{Code: CodePositionUnavailable, Message: r.Message}
	default:
		return &PositionError{Code: CodeUnknown, Message: r.Message}
	}
}

// DefaultHighAccuracyMeters 精度优于该值的位置才满足高精度请求
const DefaultHighAccuracyMeters = 100.0

// FeedSource 基于终端上报的定位源：保存每个工人最近一次上报，请求时取满足缓存年龄和精度的结果，否则等待新的上报
type FeedSource struct {
	highAccuracyMeters float64
	logger             *zap.Logger
	now                func() time.Time

	mu      sync.Mutex
	latest  map[string]Report
	waiters map[string][]chan struct{}
}

// NewFeedSource 创建上报定位源
func NewFeedSource(highAccuracyMeters float64, logger *zap.Logger) *FeedSource {
	if highAccuracyMeters <= 0 {
		highAccuracyMeters = DefaultHighAccuracyMeters
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedSource{
		highAccuracyMeters: highAccuracyMeters,
		logger:             logger,
		now:                time.Now,
		latest:             make(map[string]Report),
		waiters:            make(map[string][]chan struct{}),
	}
}

// Ingest MQTT 消息处理函数，签名与 mqtt.MessageHandler 一致
func (f *FeedSource) Ingest(topic string, payload []byte) error {
	var r Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("failed to unmarshal location report: %w", err)
	}
	if r.WorkerID == "" {
		return fmt.Errorf("location report on %s has no worker_id", topic)
	}
	if r.Timestamp == 0 {
		r.Timestamp = f.now().UnixMilli()
	}
	f.Update(r)
	f.logger.Debug("Location report received",
		zap.String("topic", topic),
		zap.String("worker_id", r.WorkerID),
		zap.String("status", r.Status),
	)
	return nil
}

// Update 记录上报并唤醒等待中的请求；早于已有记录的上报被忽略
func (f *FeedSource) Update(r Report) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.latest[r.WorkerID]; ok && prev.Timestamp > r.Timestamp {
		return
	}
	f.latest[r.WorkerID] = r
	for _, ch := range f.waiters[r.WorkerID] {
		close(ch)
	}
	delete(f.waiters, r.WorkerID)
}

// CurrentPosition 实现 Source
func (f *FeedSource) CurrentPosition(ctx context.Context, workerID string, req Request) (Position, error) {
	for {
		f.mu.Lock()
		if r, ok := f.latest[workerID]; ok {
			if pos, done, err := f.evaluate(r, req); done {
				f.mu.Unlock()
				return pos, err
			}
		}
		ch := make(chan struct{})
		f.waiters[workerID] = append(f.waiters[workerID], ch)
		f.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			f.removeWaiter(workerID, ch)
			return Position{}, timeoutError(ctx)
		}
	}
}

// evaluate 判断已有上报能否满足请求；不满足时 done=false，继续等待
func (f *FeedSource) evaluate(r Report, req Request) (Position, bool, error) {
	if req.MaximumAge > 0 && f.now().Sub(r.time()) > req.MaximumAge {
		return Position{}, false, nil
	}
	if err := r.err(); err != nil {
		return Position{}, true, err
	}
	if req.HighAccuracy && (r.Accuracy <= 0 || r.Accuracy > f.highAccuracyMeters) {
		return Position{}, false, nil
	}
	return r.position(), true, nil
}

func (f *FeedSource) removeWaiter(workerID string, ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.waiters[workerID]
	for i, c := range list {
		if c == ch {
			f.waiters[workerID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(f.waiters[workerID]) == 0 {
		delete(f.waiters, workerID)
	}
}
