package location

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPSource 通过外部定位服务查询工人位置
// GET {baseURL}/positions/{worker_id}?high_accuracy=true&maximum_age_ms=300000，响应体为 Report
type HTTPSource struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPSource 创建外部定位服务客户端；超时由每级定位的 ctx 控制
func NewHTTPSource(baseURL string, logger *zap.Logger) *HTTPSource {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSource{httpClient: client, logger: logger}
}

// CurrentPosition 实现 Source
func (s *HTTPSource) CurrentPosition(ctx context.Context, workerID string, req Request) (Position, error) {
	var report Report
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetPathParam("worker_id", workerID).
		SetQueryParam("high_accuracy", strconv.FormatBool(req.HighAccuracy)).
		SetQueryParam("maximum_age_ms", strconv.FormatInt(req.MaximumAge.Milliseconds(), 10)).
		SetResult(&report).
		Get("/positions/{worker_id}")
	if err != nil {
		if ctx.Err() != nil {
			return Position{}, timeoutError(ctx)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return Position{}, &PositionError{Code: CodeTimeout, Message: err.Error()}
		}
		s.logger.Warn("Location service call failed", zap.String("worker_id", workerID), zap.Error(err))
		return Position{}, &PositionError{Code: CodePositionUnavailable, Message: err.Error()}
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusForbidden:
		return Position{}, &PositionError{Code: CodePermissionDenied, Message: resp.String()}
	case http.StatusNotFound, http.StatusServiceUnavailable:
		return Position{}, &PositionError{Code: CodePositionUnavailable, Message: resp.String()}
	case http.StatusGatewayTimeout:
		return Position{}, &PositionError{Code: CodeTimeout, Message: resp.String()}
	default:
		return Position{}, &PositionError{Code: CodeUnknown, Message: fmt.Sprintf("status %d", resp.StatusCode())}
	}

	if err := report.err(); err != nil {
		return Position{}, err
	}
	pos := report.position()
	if report.Timestamp == 0 {
		pos.Timestamp = time.Now()
	}
	return pos, nil
}
