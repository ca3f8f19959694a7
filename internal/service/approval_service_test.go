package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GreaLake/checkIn/internal/aggregator"
	"github.com/GreaLake/checkIn/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReject_EntryNeverCountsAsAttendance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	e := f.closedEntry(li, "construction", ts(1, 8, 0), ts(1, 17, 30), domain.ApprovalNone)
	rejected, err := f.approval.Reject(ctx, DecideRequest{EntryID: e.EntryID, Note: "wrong project", Approver: lead})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalRejected, rejected.ApprovalState)
	assert.Equal(t, "wrong project", rejected.ApprovalNote)
	assert.Equal(t, "张队", rejected.DecidedBy)
	require.NotNil(t, rejected.DecidedAt)
	assert.True(t, rejected.DecidedAt.Equal(f.now))

	att := NewAttendanceService(f.entries, f.projects, time.UTC, zap.NewNop())
	for _, req := range []RecordsRequest{
		{},
		{WorkerID: "li"},
		{ActivityType: "construction"},
		{ProjectID: domain.Int64Ptr(7)},
		{Range: aggregator.DateRange{Start: ts(1, 0, 0), End: ts(1, 0, 0)}},
	} {
		records, err := att.Records(ctx, req)
		require.NoError(t, err)
		assert.Empty(t, records)
		st, err := att.Statistics(ctx, req)
		require.NoError(t, err)
		assert.Zero(t, st.TotalRecords)
	}
}

func TestDecide_NotPendingIsFinal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	e := f.closedEntry(li, "stop", ts(1, 8, 0), ts(1, 10, 0), domain.ApprovalApproved)
	require.Equal(t, domain.ApprovalApproved, e.ApprovalState)

	_, err := f.approval.Reject(ctx, DecideRequest{EntryID: e.EntryID, Note: "changed mind", Approver: lead})
	assert.ErrorIs(t, err, domain.ErrNotPending)
	_, err = f.approval.Approve(ctx, DecideRequest{EntryID: e.EntryID, Note: "again", Approver: lead})
	assert.ErrorIs(t, err, domain.ErrNotPending)
	// 非待审批时即使缺少备注也报 NotPending
	_, err = f.approval.Approve(ctx, DecideRequest{EntryID: e.EntryID, Approver: lead})
	assert.ErrorIs(t, err, domain.ErrNotPending)

	got, err := f.entries.GetEntry(ctx, e.EntryID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	// 未签退的记录也不是待审批
	open, err := f.checkIn(li, "stop", "", domain.Int64Ptr(7), ts(2, 8, 0))
	require.NoError(t, err)
	_, err = f.approval.Approve(ctx, DecideRequest{EntryID: open.EntryID, Note: "x", Approver: lead})
	assert.ErrorIs(t, err, domain.ErrNotPending)

	_, err = f.approval.Approve(ctx, DecideRequest{EntryID: "missing", Note: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecide_RequiresNote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	e := f.closedEntry(li, "stop", ts(1, 8, 0), ts(1, 10, 0), domain.ApprovalNone)

	_, err := f.approval.Approve(ctx, DecideRequest{EntryID: e.EntryID, Note: "   ", Approver: lead})
	assert.ErrorIs(t, err, domain.ErrMissingNote)
	_, err = f.approval.Reject(ctx, DecideRequest{EntryID: e.EntryID, Approver: lead})
	assert.ErrorIs(t, err, domain.ErrMissingReason)

	got, err := f.entries.GetEntry(ctx, e.EntryID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, got.ApprovalState)
	assert.Nil(t, got.DecidedAt)

	approved, err := f.approval.Approve(ctx, DecideRequest{EntryID: e.EntryID, Note: " 更换阀门 ", Approver: lead})
	require.NoError(t, err)
	assert.Equal(t, "更换阀门", approved.WorkNote)
	assert.Empty(t, approved.ApprovalNote)
}

func TestApprovalViews_Disjoint(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := f.closedEntry(li, "stop", ts(1, 8, 0), ts(1, 9, 0), domain.ApprovalNone)
	a := f.closedEntry(li, "construction", ts(1, 8, 0), ts(1, 12, 0), domain.ApprovalApproved)
	r := f.closedEntry(wang, "travel", ts(1, 7, 0), ts(1, 8, 0), domain.ApprovalRejected)
	_, err := f.checkIn(wang, "stop", "", domain.Int64Ptr(7), ts(2, 8, 0))
	require.NoError(t, err)

	ids := func(list []*domain.CheckEntry, err error) []string {
		require.NoError(t, err)
		out := []string{}
		for _, e := range list {
			out = append(out, e.EntryID)
		}
		return out
	}
	req := ListApprovalsRequest{}
	assert.Equal(t, []string{p.EntryID}, ids(f.approval.ListPending(ctx, req)))
	assert.Equal(t, []string{a.EntryID}, ids(f.approval.ListApproved(ctx, req)))
	assert.Equal(t, []string{r.EntryID}, ids(f.approval.ListRejected(ctx, req)))
	assert.Empty(t, ids(f.approval.ListPending(ctx, ListApprovalsRequest{WorkerIDs: []string{"wang"}})))

	_, err = f.approval.List(ctx, domain.ApprovalNone, req)
	assert.ErrorIs(t, err, domain.ErrUnknownState)

	counts, err := f.approval.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ApprovalCounts{Pending: 1, Approved: 1, Rejected: 1, Total: 3}, counts)
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func TestDecide_PublishFailureDoesNotFailDecision(t *testing.T) {
	f := newFixture()
	pub := &recordingPublisher{err: errors.New("redis down")}
	f.approval.SetEvents(pub)

	e := f.closedEntry(li, "stop", ts(1, 8, 0), ts(1, 9, 0), domain.ApprovalApproved)
	assert.Equal(t, domain.ApprovalApproved, e.ApprovalState)
	require.Len(t, pub.events, 1)
	assert.Equal(t, EventApproved, pub.events[0].Type)
	assert.Equal(t, e.EntryID, pub.events[0].EntryID)
}

type fakeMQTT struct {
	topics   []string
	payloads [][]byte
}

func (m *fakeMQTT) Publish(topic string, _ byte, _ bool, payload []byte) error {
	m.topics = append(m.topics, topic)
	m.payloads = append(m.payloads, payload)
	return nil
}

func TestMultiPublisher_MQTT(t *testing.T) {
	f := newFixture()
	mq := &fakeMQTT{}
	rec := &recordingPublisher{}
	f.tracker.SetEvents(MultiPublisher{NewMQTTPublisher(mq, "", 1), rec})

	_, err := f.checkIn(li, "stop", "", domain.Int64Ptr(7), ts(1, 8, 0))
	require.NoError(t, err)

	require.Len(t, mq.topics, 1)
	assert.Equal(t, "checkin/events/li/checked_in", mq.topics[0])
	assert.Contains(t, string(mq.payloads[0]), `"worker_id":"li"`)
	assert.Len(t, rec.events, 1)
}
