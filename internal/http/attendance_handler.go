package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/GreaLake/checkIn/internal/aggregator"
	"github.com/GreaLake/checkIn/internal/service"

	"go.uber.org/zap"
)

// AttendanceHandler 考勤记录、统计与导出
type AttendanceHandler struct {
	attendance *service.AttendanceService
	logger     *zap.Logger
	now        func() time.Time
}

func NewAttendanceHandler(attendance *service.AttendanceService, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, logger: logger, now: time.Now}
}

// recordsRequest 解析 startDate/endDate/userId/type/projectId
func (h *AttendanceHandler) recordsRequest(q url.Values) (service.RecordsRequest, error) {
	loc := h.attendance.Location()
	start, err := parseTime(q.Get("startDate"), loc)
	if err != nil {
		return service.RecordsRequest{}, fmt.Errorf("invalid startDate: %w", err)
	}
	end, err := parseTime(q.Get("endDate"), loc)
	if err != nil {
		return service.RecordsRequest{}, fmt.Errorf("invalid endDate: %w", err)
	}
	projectID, err := parseOptionalInt64(q.Get("projectId"))
	if err != nil {
		return service.RecordsRequest{}, fmt.Errorf("invalid projectId: %w", err)
	}
	return service.RecordsRequest{
		Range:        aggregator.DateRange{Start: start, End: end},
		WorkerID:     q.Get("userId"),
		ActivityType: q.Get("type"),
		ProjectID:    projectID,
	}, nil
}

// Records GET /api/attendance/records
func (h *AttendanceHandler) Records(w http.ResponseWriter, r *http.Request) {
	req, err := h.recordsRequest(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	records, err := h.attendance.Records(r.Context(), req)
	writeResult(w, records, err)
}

// Statistics GET /api/attendance/statistics
func (h *AttendanceHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	req, err := h.recordsRequest(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	st, err := h.attendance.Statistics(r.Context(), req)
	writeResult(w, st, err)
}

// UserStatistics GET /api/attendance/user-statistics?userId= ，默认当前用户
func (h *AttendanceHandler) UserStatistics(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("userId")
	if id == "" {
		id = caller(r).WorkerID
	}
	us, err := h.attendance.UserStatistics(r.Context(), id)
	writeResult(w, us, err)
}

// MonthlySummary GET /api/attendance/monthly-summary?year=&month= ，默认当月
func (h *AttendanceHandler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.attendance.Location())
	q := r.URL.Query()
	year := parseInt(q.Get("year"), now.Year())
	month := parseInt(q.Get("month"), int(now.Month()))
	ms, err := h.attendance.MonthlySummary(r.Context(), year, month)
	writeResult(w, ms, err)
}

// Projects GET /api/attendance/projects
func (h *AttendanceHandler) Projects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.attendance.Projects(r.Context())
	writeResult(w, projects, err)
}

// ProjectStatistics GET /api/attendance/project-statistics?projectId=&startDate=&endDate=
func (h *AttendanceHandler) ProjectStatistics(w http.ResponseWriter, r *http.Request) {
	req, err := h.recordsRequest(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	if req.ProjectID == nil {
		writeJSON(w, http.StatusBadRequest, Fail("projectId is required"))
		return
	}
	ps, err := h.attendance.ProjectStatistics(r.Context(), *req.ProjectID, req.Range)
	writeResult(w, ps, err)
}

// Export GET /api/attendance/export 导出 xlsx
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	req, err := h.recordsRequest(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	records, err := h.attendance.Records(r.Context(), req)
	if err != nil {
		writeResult[any](w, nil, err)
		return
	}
	data, err := GenerateAttendanceExport(records, h.attendance.Location())
	if err != nil {
		h.logger.Error("Failed to generate attendance export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("导出失败"))
		return
	}

	filename := fmt.Sprintf("attendance_%s.xlsx", h.now().In(h.attendance.Location()).Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
