package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"

	"go.uber.org/zap"
)

// State 单个工人的定位状态机：idle → probing-high → probing-low → resolved | failed
type State string

const (
	StateIdle        State = "idle"
	StateProbingHigh State = "probing-high"
	StateProbingLow  State = "probing-low"
	StateResolved    State = "resolved"
	StateFailed      State = "failed"
	StateUnsupported State = "unsupported" // 未配置定位源
)

// Tier 一级定位参数
type Tier struct {
	HighAccuracy bool          `yaml:"high_accuracy"`
	Timeout      time.Duration `yaml:"timeout"`
	MaximumAge   time.Duration `yaml:"maximum_age"`
}

// Config 定位配置
type Config struct {
	High Tier `yaml:"high"`
	Low  Tier `yaml:"low"`

	// 首次定位成功后持续刷新位置；Interval 为 0 表示不监听
	MonitorInterval   time.Duration `yaml:"monitor_interval"`
	MonitorMaximumAge time.Duration `yaml:"monitor_maximum_age"`
	// 超过 MonitorIdle 没有 Acquire/LastKnown 调用则停止监听；0 取 DefaultMonitorIdle
	MonitorIdle       time.Duration `yaml:"monitor_idle"`
}

const DefaultMonitorIdle = 10 * time.Minute

// DefaultConfig 高精度 10s/5min，低精度 15s/10min，监听缓存 1min
func DefaultConfig() Config {
	return Config{
		High:              Tier{HighAccuracy: true, Timeout: 10 * time.Second, MaximumAge: 5 * time.Minute},
		Low:               Tier{HighAccuracy: false, Timeout: 15 * time.Second, MaximumAge: 10 * time.Minute},
		MonitorInterval:   time.Minute,
		MonitorMaximumAge: time.Minute,
		MonitorIdle:       DefaultMonitorIdle,
	}
}

func (t Tier) request() Request {
	return Request{HighAccuracy: t.HighAccuracy, Timeout: t.Timeout, MaximumAge: t.MaximumAge}
}

// Snapshot 某工人当前的定位状态
type Snapshot struct {
	State     State           `json:"state"`
	Location  domain.Location `json:"location"`
	Status    string          `json:"status"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Known     bool            `json:"known"` // 是否有可用的最近坐标
}

type workerState struct {
	state     State
	current   domain.Location // 最近一次定位结果（可能是失败）
	known     domain.Location // 最近一次成功的坐标
	hasKnown  bool
	updatedAt time.Time
	lastUsed  time.Time          // 最近一次 Acquire/LastKnown
	stop      context.CancelFunc // 监听
	monitorID uint64
}

// Probe 两级定位
type Probe struct {
	source Source
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	workers  map[string]*workerState
	monitors uint64
	wg       sync.WaitGroup
	closed   bool
}

// NewProbe 创建定位器；source 为 nil 时所有定位都返回"不支持"
func NewProbe(source Source, cfg Config, logger *zap.Logger) *Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{
		source:  source,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		workers: make(map[string]*workerState),
	}
}

// SetClock 替换时钟（测试用）
func (p *Probe) SetClock(now func() time.Time) {
	p.now = now
}

// Acquire 获取位置
// 高精度失败后用低精度重试一次，结果标记为低精度；两级都失败时返回带原因的失败位置
// 只有 ctx 被调用方取消时才返回 error，两级定位都会随之取消
func (p *Probe) Acquire(ctx context.Context, workerID string) (domain.Location, error) {
	if p.source == nil {
		loc := domain.LocationFailed(reasonNoSource, "")
		p.setState(workerID, StateUnsupported, &loc)
		return loc, nil
	}

	p.touch(workerID)
	p.setState(workerID, StateProbingHigh, nil)
	pos, err := p.attempt(ctx, workerID, p.cfg.High)
	if err == nil {
		loc := domain.Coordinates(pos.Latitude, pos.Longitude)
		p.resolve(workerID, loc)
		return loc, nil
	}
	if ctx.Err() != nil {
		p.setState(workerID, StateIdle, nil)
		return domain.Location{}, ctx.Err()
	}
	p.logger.Debug("High accuracy location failed, falling back to low accuracy",
		zap.String("worker_id", workerID),
		zap.String("code", CodeOf(err).String()),
		zap.Error(err),
	)

	p.setState(workerID, StateProbingLow, nil)
	pos, err = p.attempt(ctx, workerID, p.cfg.Low)
	if err == nil {
		loc := domain.DegradedCoordinates(pos.Latitude, pos.Longitude)
		p.resolve(workerID, loc)
		return loc, nil
	}
	if ctx.Err() != nil {
		p.setState(workerID, StateIdle, nil)
		return domain.Location{}, ctx.Err()
	}

	reason, hint := Describe(err)
	p.logger.Warn("Location unavailable",
		zap.String("worker_id", workerID),
		zap.String("code", CodeOf(err).String()),
		zap.Error(err),
	)
	loc := domain.LocationFailed(reason, hint)
	p.setState(workerID, StateFailed, &loc)
	return loc, nil
}

func (p *Probe) attempt(ctx context.Context, workerID string, tier Tier) (Position, error) {
	tierCtx := ctx
	if tier.Timeout > 0 {
		var cancel context.CancelFunc
		tierCtx, cancel = context.WithTimeout(ctx, tier.Timeout)
		defer cancel()
	}
	pos, err := p.source.CurrentPosition(tierCtx, workerID, tier.request())
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return Position{}, &PositionError{Code: CodeTimeout, Message: err.Error()}
	}
	return pos, err
}

func (p *Probe) resolve(workerID string, loc domain.Location) {
	p.mu.Lock()
	w := p.worker(workerID)
	w.state = StateResolved
	w.current = loc
	w.known = loc
	w.hasKnown = true
	w.updatedAt = p.now()
	startMonitor := p.cfg.MonitorInterval > 0 && w.stop == nil && !p.closed
	if startMonitor {
		ctx, cancel := context.WithCancel(context.Background())
		p.monitors++
		w.stop = cancel
		w.monitorID = p.monitors
		p.wg.Add(1)
		go p.monitor(ctx, workerID, w.monitorID)
	}
	p.mu.Unlock()
}

func (p *Probe) touch(workerID string) {
	p.mu.Lock()
	p.worker(workerID).lastUsed = p.now()
	p.mu.Unlock()
}

func (p *Probe) monitorIdle() time.Duration {
	if p.cfg.MonitorIdle > 0 {
		return p.cfg.MonitorIdle
	}
	return DefaultMonitorIdle
}

// stopIfIdle 长时间没人使用时停止本监听，返回是否已停止
func (p *Probe) stopIfIdle(workerID string, id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.worker(workerID)
	if w.monitorID != id || w.stop == nil {
		return true
	}
	if p.now().Sub(w.lastUsed) < p.monitorIdle() {
		return false
	}
	w.stop()
	w.stop = nil
	return true
}

func (p *Probe) setState(workerID string, s State, loc *domain.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.worker(workerID)
	w.state = s
	if loc != nil {
		w.current = *loc
		w.updatedAt = p.now()
	}
}

// worker 调用方持有 p.mu
func (p *Probe) worker(workerID string) *workerState {
	w, ok := p.workers[workerID]
	if !ok {
		w = &workerState{state: StateIdle}
		p.workers[workerID] = w
	}
	return w
}

// monitor 定期刷新位置；失败只记录日志，不会把已知坐标降级为失败
func (p *Probe) monitor(ctx context.Context, workerID string, id uint64) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.MonitorInterval)
	defer ticker.Stop()

	tier := Tier{HighAccuracy: true, Timeout: p.cfg.High.Timeout, MaximumAge: p.cfg.MonitorMaximumAge}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if p.stopIfIdle(workerID, id) {
			p.logger.Debug("Location monitor stopped", zap.String("worker_id", workerID))
			return
		}

		pos, err := p.attempt(ctx, workerID, tier)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Debug("Location monitor update failed",
				zap.String("worker_id", workerID),
				zap.String("code", CodeOf(err).String()),
				zap.Error(err),
			)
			continue
		}

		loc := domain.Coordinates(pos.Latitude, pos.Longitude)
		p.mu.Lock()
		w := p.worker(workerID)
		w.known = loc
		w.hasKnown = true
		w.updatedAt = p.now()
		// 正在进行的主动定位由 Acquire 负责更新状态
		if w.state == StateResolved || w.state == StateFailed {
			w.state = StateResolved
			w.current = loc
		}
		p.mu.Unlock()
	}
}

// Status 当前定位状态；从未定位过的工人为 idle
func (p *Probe) Status(workerID string) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[workerID]
	if !ok {
		return Snapshot{State: StateIdle, Status: "未定位"}
	}
	s := Snapshot{State: w.state, Location: w.current, UpdatedAt: w.updatedAt, Known: w.hasKnown}
	switch w.state {
	case StateProbingHigh, StateProbingLow:
		s.Status = "正在获取位置..."
	case StateIdle:
		s.Status = "未定位"
	default:
		s.Status = w.current.Status()
	}
	return s
}

// LastKnown 最近一次成功的坐标，同时延长监听
func (p *Probe) LastKnown(workerID string) (domain.Location, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[workerID]
	if !ok {
		return domain.Location{}, false
	}
	w.lastUsed = p.now()
	if !w.hasKnown {
		return domain.Location{}, false
	}
	return w.known, true
}

// Monitoring 是否正在监听
func (p *Probe) Monitoring(workerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[workerID]
	return ok && w.stop != nil
}

// StopMonitoring 停止某工人的位置监听
func (p *Probe) StopMonitoring(workerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.workers[workerID]; ok && w.stop != nil {
		w.stop()
		w.stop = nil
	}
}

// Close 停止全部监听并等待退出
func (p *Probe) Close() {
	p.mu.Lock()
	p.closed = true
	for _, w := range p.workers {
		if w.stop != nil {
			w.stop()
			w.stop = nil
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
}
