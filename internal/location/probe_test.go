package location

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		High: Tier{HighAccuracy: true, Timeout: 20 * time.Millisecond, MaximumAge: 5 * time.Minute},
		Low:  Tier{HighAccuracy: false, Timeout: time.Second, MaximumAge: 10 * time.Minute},
	}
}

// blockUntilDone 模拟一直拿不到位置的定位源
func blockUntilDone(ctx context.Context) (Position, error) {
	<-ctx.Done()
	return Position{}, ctx.Err()
}

func TestAcquire_HighTimeoutLowSucceeds(t *testing.T) {
	var tiers []bool
	src := SourceFunc(func(ctx context.Context, workerID string, req Request) (Position, error) {
		tiers = append(tiers, req.HighAccuracy)
		if req.HighAccuracy {
			return blockUntilDone(ctx)
		}
		assert.Equal(t, 10*time.Minute, req.MaximumAge)
		return Position{Latitude: 31.123456, Longitude: 121.654321}, nil
	})
	p := NewProbe(src, testConfig(), zap.NewNop())
	defer p.Close()

	loc, err := p.Acquire(context.Background(), "li")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, tiers)
	assert.True(t, loc.Degraded())
	assert.True(t, loc.HasCoordinates())
	assert.Equal(t, "31.123456, 121.654321", loc.String())

	snap := p.Status("li")
	assert.Equal(t, StateResolved, snap.State)
	assert.Equal(t, "已定位（低精度）", snap.Status)
	assert.True(t, snap.Known)
}

func TestAcquire_HighSucceeds(t *testing.T) {
	src := SourceFunc(func(ctx context.Context, workerID string, req Request) (Position, error) {
		require.True(t, req.HighAccuracy)
		return Position{Latitude: 1, Longitude: 2}, nil
	})
	p := NewProbe(src, testConfig(), nil)
	defer p.Close()

	loc, err := p.Acquire(context.Background(), "li")
	require.NoError(t, err)
	assert.Equal(t, domain.LocationCoordinates, loc.Kind)
}

func TestAcquire_FailureClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		reason   string
		withHint bool
	}{
		{"permission", &PositionError{Code: CodePermissionDenied}, "位置权限被拒绝，请在浏览器设置中允许位置访问", true},
		{"unavailable", &PositionError{Code: CodePositionUnavailable}, "位置信息不可用，请检查GPS或网络连接", false},
		{"timeout", &PositionError{Code: CodeTimeout}, "获取位置超时，请重试", false},
		{"other", &PositionError{Code: CodeUnknown, Message: "boom"}, "位置获取失败: boom", false},
		{"plain error", errors.New("gps driver crashed"), "位置获取失败: gps driver crashed", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := SourceFunc(func(ctx context.Context, workerID string, req Request) (Position, error) {
				return Position{}, tt.err
			})
			p := NewProbe(src, testConfig(), nil)
			defer p.Close()

			loc, err := p.Acquire(context.Background(), "li")
			require.NoError(t, err)
			assert.Equal(t, domain.LocationFailure, loc.Kind)
			assert.Equal(t, tt.reason, loc.Reason)
			assert.Equal(t, tt.withHint, loc.Hint != "")
			assert.Equal(t, tt.reason, loc.String())

			snap := p.Status("li")
			assert.Equal(t, StateFailed, snap.State)
			assert.Equal(t, "定位失败", snap.Status)
			assert.False(t, snap.Known)
		})
	}
}

func TestAcquire_BothTiersTimeOut(t *testing.T) {
	cfg := testConfig()
	cfg.Low.Timeout = 20 * time.Millisecond
	p := NewProbe(SourceFunc(func(ctx context.Context, _ string, _ Request) (Position, error) {
		return blockUntilDone(ctx)
	}), cfg, nil)
	defer p.Close()

	loc, err := p.Acquire(context.Background(), "li")
	require.NoError(t, err)
	assert.Equal(t, "获取位置超时，请重试", loc.Reason)
}

func TestAcquire_CallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig()
	cfg.High.Timeout = time.Minute

	var calls int32
	started := make(chan struct{})
	p := NewProbe(SourceFunc(func(ctx context.Context, _ string, _ Request) (Position, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		return blockUntilDone(ctx)
	}), cfg, nil)
	defer p.Close()

	go func() {
		<-started
		cancel()
	}()

	_, err := p.Acquire(ctx, "li")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "low tier must not start after cancel")
	assert.Equal(t, StateIdle, p.Status("li").State)
}

func TestAcquire_NoSource(t *testing.T) {
	p := NewProbe(nil, testConfig(), nil)
	loc, err := p.Acquire(context.Background(), "li")
	require.NoError(t, err)
	assert.Equal(t, "设备不支持地理定位功能", loc.Reason)
	assert.Equal(t, StateUnsupported, p.Status("li").State)
}

func TestMonitor_FailuresKeepKnownCoordinate(t *testing.T) {
	cfg := testConfig()
	cfg.MonitorInterval = 5 * time.Millisecond
	cfg.MonitorMaximumAge = time.Minute

	var calls int32
	src := SourceFunc(func(ctx context.Context, _ string, req Request) (Position, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return Position{Latitude: 31.1, Longitude: 121.6}, nil
		}
		assert.Equal(t, time.Minute, req.MaximumAge)
		return Position{}, &PositionError{Code: CodePositionUnavailable}
	})
	p := NewProbe(src, cfg, nil)

	_, err := p.Acquire(context.Background(), "li")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 4 }, time.Second, 5*time.Millisecond)
	p.Close()

	loc, ok := p.LastKnown("li")
	require.True(t, ok)
	assert.Equal(t, domain.Coordinates(31.1, 121.6), loc)
	snap := p.Status("li")
	assert.Equal(t, StateResolved, snap.State)
	assert.Equal(t, "已定位", snap.Status)
}

func TestMonitor_RefreshesCoordinate(t *testing.T) {
	cfg := testConfig()
	cfg.MonitorInterval = 5 * time.Millisecond

	var calls int32
	src := SourceFunc(func(ctx context.Context, _ string, _ Request) (Position, error) {
		n := atomic.AddInt32(&calls, 1)
		return Position{Latitude: float64(n), Longitude: 100}, nil
	})
	p := NewProbe(src, cfg, nil)

	_, err := p.Acquire(context.Background(), "li")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		loc, _ := p.LastKnown("li")
		return loc.Latitude > 1
	}, time.Second, 5*time.Millisecond)

	p.StopMonitoring("li")
	p.Close()
}

// manualClock 可并发读取的手动时钟
type manualClock struct{ ns atomic.Int64 }

func newManualClock(t time.Time) *manualClock {
	c := &manualClock{}
	c.ns.Store(t.UnixNano())
	return c
}

func (c *manualClock) Now() time.Time          { return time.Unix(0, c.ns.Load()) }
func (c *manualClock) Advance(d time.Duration) { c.ns.Add(int64(d)) }

func TestMonitor_StopsWhenIdle(t *testing.T) {
	cfg := testConfig()
	cfg.MonitorInterval = 2 * time.Millisecond
	cfg.MonitorIdle = 10 * time.Minute

	var calls int64
	src := SourceFunc(func(ctx context.Context, _ string, _ Request) (Position, error) {
		atomic.AddInt64(&calls, 1)
		return Position{Latitude: 31.1, Longitude: 121.6}, nil
	})
	clock := newManualClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	p := NewProbe(src, cfg, nil)
	p.SetClock(clock.Now)
	defer p.Close()

	workers := make([]string, 50)
	for i := range workers {
		workers[i] = fmt.Sprintf("w%d", i)
		ctx, cancel := context.WithCancel(context.Background())
		_, err := p.Acquire(ctx, workers[i])
		cancel()
		require.NoError(t, err)
		require.True(t, p.Monitoring(workers[i]))
	}

	// w0 仍在使用
	clock.Advance(6 * time.Minute)
	_, ok := p.LastKnown("w0")
	require.True(t, ok)
	clock.Advance(6 * time.Minute)

	require.Eventually(t, func() bool {
		for _, w := range workers[1:] {
			if p.Monitoring(w) {
				return false
			}
		}
		return true
	}, time.Second, 2*time.Millisecond)
	assert.True(t, p.Monitoring("w0"))

	clock.Advance(11 * time.Minute)
	require.Eventually(t, func() bool { return !p.Monitoring("w0") }, time.Second, 2*time.Millisecond)

	// 全部监听退出后定位源不再被调用
	time.Sleep(10 * time.Millisecond)
	before := atomic.LoadInt64(&calls)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, atomic.LoadInt64(&calls))

	// 再次定位重新开始监听
	_, err := p.Acquire(context.Background(), "w1")
	require.NoError(t, err)
	assert.True(t, p.Monitoring("w1"))
}
