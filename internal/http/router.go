package httpapi

import (
	"net/http"
	"strings"

	"github.com/GreaLake/checkIn/internal/domain"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes GET /health
func (r *Router) RegisterHealthRoutes(service string) {
	r.Handle("/health", only(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "UP", "service": service}))
	}))
}

// RegisterCheckinRoutes 签到/签退
func (r *Router) RegisterCheckinRoutes(h *CheckinHandler) {
	r.Handle("/api/checkin/checkin", only(http.MethodPost, h.CheckIn))
	r.Handle("/api/checkin/checkout", only(http.MethodPost, h.CheckOut))
	r.Handle("/api/checkin/status", only(http.MethodGet, h.Status))
	r.Handle("/api/checkin/location", only(http.MethodGet, h.Location))
	r.Handle("/api/checkin/team-status", only(http.MethodGet, h.TeamStatus))
	r.Handle("/api/checkin/team-records", only(http.MethodGet, h.TeamRecords))

	// status/{type}
	r.Handle("/api/checkin/status/", only(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
		t, ok := pathID(req, "/api/checkin/status/")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.StatusByType(w, req, t)
	}))
}

// RegisterApprovalRoutes 审批
func (r *Router) RegisterApprovalRoutes(h *ApprovalHandler) {
	r.Handle("/api/approval/pending", only(http.MethodGet, h.List(domain.ApprovalPending)))
	r.Handle("/api/approval/approved", only(http.MethodGet, h.List(domain.ApprovalApproved)))
	r.Handle("/api/approval/rejected", only(http.MethodGet, h.List(domain.ApprovalRejected)))
	r.Handle("/api/approval/statistics", only(http.MethodGet, h.Statistics))

	r.Handle("/api/approval/approve/", only(http.MethodPost, func(w http.ResponseWriter, req *http.Request) {
		id, ok := pathID(req, "/api/approval/approve/")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Approve(w, req, id)
	}))
	r.Handle("/api/approval/reject/", only(http.MethodPost, func(w http.ResponseWriter, req *http.Request) {
		id, ok := pathID(req, "/api/approval/reject/")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Reject(w, req, id)
	}))
}

// RegisterAttendanceRoutes 考勤
func (r *Router) RegisterAttendanceRoutes(h *AttendanceHandler) {
	r.Handle("/api/attendance/records", only(http.MethodGet, h.Records))
	r.Handle("/api/attendance/statistics", only(http.MethodGet, h.Statistics))
	r.Handle("/api/attendance/user-statistics", only(http.MethodGet, h.UserStatistics))
	r.Handle("/api/attendance/monthly-summary", only(http.MethodGet, h.MonthlySummary))
	r.Handle("/api/attendance/projects", only(http.MethodGet, h.Projects))
	r.Handle("/api/attendance/project-statistics", only(http.MethodGet, h.ProjectStatistics))
	r.Handle("/api/attendance/export", only(http.MethodGet, h.Export))
}

// WithRequestLog 记录请求日志；健康检查不记录
func (r *Router) WithRequestLog() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.ServeHTTP(w, req)
		if strings.HasPrefix(req.URL.Path, "/health") {
			return
		}
		r.logger.Debug("HTTP request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("user_id", req.Header.Get(headerUserID)),
		)
	})
}
