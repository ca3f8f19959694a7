package service

import (
	"context"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"
	"github.com/GreaLake/checkIn/internal/repository"

	"go.uber.org/zap"
)

type fixture struct {
	entries  *repository.MemoryEntriesRepo
	projects *repository.MemoryProjectsRepo
	workers  *repository.MemoryWorkersRepo
	tracker  *SessionTracker
	approval *ApprovalService
	now      time.Time
}

var (
	li   = domain.WorkerProfile{WorkerID: "li", DisplayName: "Li", Role: domain.RoleMember, TeamID: "t1"}
	wang = domain.WorkerProfile{WorkerID: "wang", DisplayName: "Wang", Role: domain.RoleMember, TeamID: "t1"}
	lead = domain.WorkerProfile{WorkerID: "zhang", DisplayName: "张队", Role: domain.RoleLead, TeamID: "t1"}
)

func ts(day, hour, min int) time.Time {
	return time.Date(2024, 5, day, hour, min, 0, 0, time.UTC)
}

func newFixture() *fixture {
	f := &fixture{
		entries: repository.NewMemoryEntriesRepo(),
		projects: repository.NewMemoryProjectsRepo(
			domain.Project{ProjectID: 7, ProjectCode: "P-007", ProjectName: "七号井", Status: "active"},
			domain.Project{ProjectID: 8, ProjectCode: "P-008", ProjectName: "八号井", Status: "active"},
			domain.Project{ProjectID: 9, ProjectCode: "P-009", ProjectName: "停用", Status: "inactive"},
		),
		workers: repository.NewMemoryWorkersRepo(),
		now:     ts(1, 18, 0),
	}
	f.tracker = NewSessionTracker(f.entries, f.projects, f.workers, zap.NewNop())
	f.tracker.SetClock(func() time.Time { return f.now })
	f.approval = NewApprovalService(f.entries, zap.NewNop())
	f.approval.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) checkIn(w domain.WorkerProfile, typ, subType string, project *int64, at time.Time) (*domain.CheckEntry, error) {
	loc := domain.Coordinates(31.123456, 121.654321)
	return f.tracker.CheckIn(context.Background(), CheckInRequest{
		Worker:          w,
		ActivityType:    typ,
		ActivitySubType: subType,
		ProjectID:       project,
		Location:        &loc,
		At:              at,
	})
}

// closedEntry 签到、签退并按需审批
func (f *fixture) closedEntry(w domain.WorkerProfile, typ string, open, close time.Time, decision domain.ApprovalState) *domain.CheckEntry {
	var project *int64
	var subType string
	if typ == "travel" {
		subType = "departure"
	} else {
		project = domain.Int64Ptr(7)
	}
	e, err := f.checkIn(w, typ, subType, project, open)
	if err != nil {
		panic(err)
	}
	e, err = f.tracker.CheckOut(context.Background(), CheckOutRequest{EntryID: e.EntryID, At: close})
	if err != nil {
		panic(err)
	}
	req := DecideRequest{EntryID: e.EntryID, Note: "ok", Approver: lead}
	switch decision {
	case domain.ApprovalApproved:
		e, err = f.approval.Approve(context.Background(), req)
	case domain.ApprovalRejected:
		e, err = f.approval.Reject(context.Background(), req)
	}
	if err != nil {
		panic(err)
	}
	return e
}
