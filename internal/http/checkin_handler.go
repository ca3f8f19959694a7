package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"
	"github.com/GreaLake/checkIn/internal/location"
	"github.com/GreaLake/checkIn/internal/service"

	"go.uber.org/zap"
)

// CheckinHandler 签到/签退与团队视图
type CheckinHandler struct {
	tracker *service.SessionTracker
	probe   *location.Probe
	loc     *time.Location
	logger  *zap.Logger
}

func NewCheckinHandler(tracker *service.SessionTracker, probe *location.Probe, loc *time.Location, logger *zap.Logger) *CheckinHandler {
	if loc == nil {
		loc = time.Local
	}
	return &CheckinHandler{tracker: tracker, probe: probe, loc: loc, logger: logger}
}

type checkInBody struct {
	Type         string           `json:"type"`
	SubType      string           `json:"subType"`
	ProjectID    *int64           `json:"projectId"`
	DeferProject bool             `json:"deferProject"`
	Location     *domain.Location `json:"location"`
	Latitude     *float64         `json:"latitude"`
	Longitude    *float64         `json:"longitude"`
	Time         string           `json:"checkInTime"`
}

// CheckIn POST /api/checkin/checkin
func (h *CheckinHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var body checkInBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	at, err := parseTime(body.Time, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid checkInTime"))
		return
	}

	loc := body.Location
	if loc == nil && body.Latitude != nil && body.Longitude != nil {
		c := domain.Coordinates(*body.Latitude, *body.Longitude)
		loc = &c
	}

	entry, err := h.tracker.CheckIn(r.Context(), service.CheckInRequest{
		Worker:          caller(r),
		ActivityType:    body.Type,
		ActivitySubType: body.SubType,
		ProjectID:       body.ProjectID,
		DeferProject:    body.DeferProject,
		Location:        loc,
		At:              at,
	})
	writeResult(w, entry, err)
}

type checkOutBody struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	ProjectID *int64 `json:"projectId"`
	Time      string `json:"checkOutTime"`
}

// CheckOut POST /api/checkin/checkout
// 带 id 时签退指定记录，否则按类型签退当前未签退的记录
func (h *CheckinHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var body checkOutBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	at, err := parseTime(body.Time, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid checkOutTime"))
		return
	}

	me := caller(r)
	var entry *domain.CheckEntry
	if body.ID != "" {
		entry, err = h.tracker.CheckOut(r.Context(), service.CheckOutRequest{
			EntryID:   body.ID,
			WorkerID:  me.WorkerID,
			ProjectID: body.ProjectID,
			At:        at,
		})
	} else {
		entry, err = h.tracker.CheckOutByType(r.Context(), me.WorkerID, body.Type, body.ProjectID, at)
	}
	writeResult(w, entry, err)
}

// Status GET /api/checkin/status
func (h *CheckinHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.tracker.OpenStatus(r.Context(), caller(r).WorkerID)
	writeResult(w, st, err)
}

type typeStatus struct {
	CheckedIn bool               `json:"checkedIn"`
	Entry     *domain.CheckEntry `json:"entry,omitempty"`
}

// StatusByType GET /api/checkin/status/{type}
func (h *CheckinHandler) StatusByType(w http.ResponseWriter, r *http.Request, activityType string) {
	e, err := h.tracker.GetOpenEntry(r.Context(), caller(r).WorkerID, activityType)
	writeResult(w, typeStatus{CheckedIn: e != nil, Entry: e}, err)
}

type locationResult struct {
	Location domain.Location   `json:"location"`
	Status   string            `json:"status"`
	Probe    location.Snapshot `json:"probe"`
}

// Location GET /api/checkin/location 服务端定位，失败时返回原因描述而不是错误
func (h *CheckinHandler) Location(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	if me.WorkerID == "" {
		writeResult[any](w, nil, domain.ErrMissingWorker)
		return
	}
	if h.probe == nil {
		loc := domain.LocationFailed("设备不支持地理定位功能", "")
		writeResult(w, locationResult{Location: loc, Status: loc.Status()}, nil)
		return
	}
	loc, err := h.probe.Acquire(r.Context(), me.WorkerID)
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			return
		}
		writeResult[any](w, nil, err)
		return
	}
	writeResult(w, locationResult{Location: loc, Status: loc.Status(), Probe: h.probe.Status(me.WorkerID)}, nil)
}

// TeamStatus GET /api/checkin/team-status
func (h *CheckinHandler) TeamStatus(w http.ResponseWriter, r *http.Request) {
	members, err := h.tracker.TeamStatus(r.Context(), caller(r))
	writeResult(w, members, err)
}

// TeamRecords GET /api/checkin/team-records?startDate=&endDate=&userId=
func (h *CheckinHandler) TeamRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.TeamRecordsRequest{Lead: caller(r), WorkerID: q.Get("userId")}
	if req.WorkerID == "all" {
		req.WorkerID = ""
	}
	if s := q.Get("startDate"); s != "" {
		t, err := parseTime(s, h.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid startDate"))
			return
		}
		req.From = &t
	}
	if s := q.Get("endDate"); s != "" {
		t, err := parseTime(s, h.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid endDate"))
			return
		}
		// 结束日期当天也包含在内
		t = t.AddDate(0, 0, 1)
		req.To = &t
	}
	records, err := h.tracker.TeamRecords(r.Context(), req)
	writeResult(w, records, err)
}
