package httpapi

import (
	"net/http"

	"github.com/GreaLake/checkIn/internal/domain"
	"github.com/GreaLake/checkIn/internal/service"

	"go.uber.org/zap"
)

// ApprovalHandler 审批接口，只对队长开放
type ApprovalHandler struct {
	approval *service.ApprovalService
	logger   *zap.Logger
}

func NewApprovalHandler(approval *service.ApprovalService, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{approval: approval, logger: logger}
}

func (h *ApprovalHandler) lead(w http.ResponseWriter, r *http.Request) (domain.WorkerProfile, bool) {
	me := caller(r)
	if !me.IsLead() {
		writeResult[any](w, nil, domain.ErrNotLead)
		return me, false
	}
	return me, true
}

// List GET /api/approval/{pending|approved|rejected}?userId=
func (h *ApprovalHandler) List(state domain.ApprovalState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.lead(w, r); !ok {
			return
		}
		req := service.ListApprovalsRequest{}
		if id := r.URL.Query().Get("userId"); id != "" && id != "all" {
			req.WorkerIDs = []string{id}
		}
		entries, err := h.approval.List(r.Context(), state, req)
		writeResult(w, entries, err)
	}
}

type decideBody struct {
	WorkContent     string `json:"workContent"`
	RejectionReason string `json:"rejectionReason"`
}

// Approve POST /api/approval/approve/{id} {"workContent": "..."}
func (h *ApprovalHandler) Approve(w http.ResponseWriter, r *http.Request, id string) {
	me, ok := h.lead(w, r)
	if !ok {
		return
	}
	var body decideBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	e, err := h.approval.Approve(r.Context(), service.DecideRequest{EntryID: id, Note: body.WorkContent, Approver: me})
	writeResult(w, e, err)
}

// Reject POST /api/approval/reject/{id} {"rejectionReason": "..."}
func (h *ApprovalHandler) Reject(w http.ResponseWriter, r *http.Request, id string) {
	me, ok := h.lead(w, r)
	if !ok {
		return
	}
	var body decideBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	e, err := h.approval.Reject(r.Context(), service.DecideRequest{EntryID: id, Note: body.RejectionReason, Approver: me})
	writeResult(w, e, err)
}

// Statistics GET /api/approval/statistics
func (h *ApprovalHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.lead(w, r); !ok {
		return
	}
	c, err := h.approval.Counts(r.Context())
	writeResult(w, c, err)
}
