package location

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeTimeout, CodeOf(context.DeadlineExceeded))
	assert.Equal(t, CodePermissionDenied, CodeOf(fmt.Errorf("wrapped: %w", &PositionError{Code: CodePermissionDenied})))
	assert.Equal(t, CodeUnknown, CodeOf(assert.AnError))
}

func TestFeedSource_CachedReport(t *testing.T) {
	f := NewFeedSource(50, nil)
	payload := fmt.Sprintf(`{"worker_id":"li","latitude":31.123456,"longitude":121.654321,"accuracy":10,"timestamp":%d,"status":"ok"}`,
		time.Now().Add(-time.Minute).UnixMilli())
	require.NoError(t, f.Ingest("checkin/location/li", []byte(payload)))

	pos, err := f.CurrentPosition(context.Background(), "li", Request{HighAccuracy: true, MaximumAge: 5 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 31.123456, pos.Latitude)
	assert.Equal(t, 121.654321, pos.Longitude)
}

func TestFeedSource_StaleOrCoarseWaits(t *testing.T) {
	f := NewFeedSource(50, nil)
	f.Update(Report{WorkerID: "li", Latitude: 1, Longitude: 2, Accuracy: 500, Timestamp: time.Now().UnixMilli(), Status: ReportOK})

	// 精度不够高精度要求，等待到超时
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.CurrentPosition(ctx, "li", Request{HighAccuracy: true, MaximumAge: time.Minute})
	assert.Equal(t, CodeTimeout, CodeOf(err))

	// 低精度可以用
	pos, err := f.CurrentPosition(context.Background(), "li", Request{MaximumAge: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 1.0, pos.Latitude)

	// 过期的上报不满足请求
	f.Update(Report{WorkerID: "wang", Latitude: 1, Longitude: 2, Accuracy: 5, Timestamp: time.Now().Add(-time.Hour).UnixMilli()})
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err = f.CurrentPosition(ctx2, "wang", Request{MaximumAge: time.Minute})
	assert.Equal(t, CodeTimeout, CodeOf(err))
}

func TestFeedSource_WakesOnUpdate(t *testing.T) {
	f := NewFeedSource(0, nil)
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Update(Report{WorkerID: "li", Latitude: 3, Longitude: 4, Accuracy: 5, Timestamp: time.Now().UnixMilli()})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pos, err := f.CurrentPosition(ctx, "li", Request{HighAccuracy: true, MaximumAge: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 3.0, pos.Latitude)

	f.mu.Lock()
	assert.Empty(t, f.waiters)
	f.mu.Unlock()
}

func TestFeedSource_DeniedReport(t *testing.T) {
	f := NewFeedSource(0, nil)
	require.NoError(t, f.Ingest("t", []byte(`{"worker_id":"li","status":"denied","message":"user blocked"}`)))

	_, err := f.CurrentPosition(context.Background(), "li", Request{MaximumAge: time.Minute})
	assert.Equal(t, CodePermissionDenied, CodeOf(err))
}

func TestFeedSource_IngestRejectsBadPayload(t *testing.T) {
	f := NewFeedSource(0, nil)
	assert.Error(t, f.Ingest("t", []byte(`not json`)))
	assert.Error(t, f.Ingest("t", []byte(`{"latitude":1}`)))
}

func TestFeedSource_CancelRemovesWaiter(t *testing.T) {
	f := NewFeedSource(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.CurrentPosition(ctx, "li", Request{})
	assert.ErrorIs(t, err, context.Canceled)

	f.mu.Lock()
	assert.Empty(t, f.waiters)
	f.mu.Unlock()
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/positions/li":
			assert.Equal(t, "true", r.URL.Query().Get("high_accuracy"))
			assert.Equal(t, "300000", r.URL.Query().Get("maximum_age_ms"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"worker_id":"li","latitude":31.123456,"longitude":121.654321,"accuracy":8,"timestamp":1714550400000,"status":"ok"}`))
		case "/positions/denied":
			w.WriteHeader(http.StatusForbidden)
		case "/positions/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL, nil)
	req := Request{HighAccuracy: true, MaximumAge: 5 * time.Minute}

	pos, err := s.CurrentPosition(context.Background(), "li", req)
	require.NoError(t, err)
	assert.Equal(t, 31.123456, pos.Latitude)
	assert.Equal(t, int64(1714550400000), pos.Timestamp.UnixMilli())

	_, err = s.CurrentPosition(context.Background(), "denied", req)
	assert.Equal(t, CodePermissionDenied, CodeOf(err))

	_, err = s.CurrentPosition(context.Background(), "nobody", req)
	assert.Equal(t, CodePositionUnavailable, CodeOf(err))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.CurrentPosition(ctx, "slow", req)
	assert.Equal(t, CodeTimeout, CodeOf(err))
}
