package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresEntriesRepository 打卡记录Repository实现
type PostgresEntriesRepository struct {
	db *sql.DB
}

// NewPostgresEntriesRepository 创建打卡记录Repository
func NewPostgresEntriesRepository(db *sql.DB) *PostgresEntriesRepository {
	return &PostgresEntriesRepository{db: db}
}

// 确保实现了接口
var _ EntriesRepository = (*PostgresEntriesRepository)(nil)

const entryColumns = `
			entry_id::text,
			worker_id,
			worker_name,
			activity_type,
			activity_sub_type,
			project_id,
			location,
			opened_at,
			closed_at,
			approval_state,
			work_note,
			approval_note,
			decided_by,
			decided_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.CheckEntry, error) {
	var e domain.CheckEntry
	var subType, approvalState, workNote, approvalNote, decidedBy sql.NullString
	var projectID sql.NullInt64
	var closedAt, decidedAt sql.NullTime
	var location []byte

	if err := row.Scan(
		&e.EntryID,
		&e.WorkerID,
		&e.WorkerName,
		&e.ActivityType,
		&subType,
		&projectID,
		&location,
		&e.OpenedAt,
		&closedAt,
		&approvalState,
		&workNote,
		&approvalNote,
		&decidedBy,
		&decidedAt,
	); err != nil {
		return nil, err
	}

	e.ActivitySubType = domain.TravelSubType(subType.String)
	if projectID.Valid {
		e.ProjectID = domain.Int64Ptr(projectID.Int64)
	}
	if len(location) > 0 {
		if err := json.Unmarshal(location, &e.Location); err != nil {
			return nil, fmt.Errorf("invalid location of entry %s: %w", e.EntryID, err)
		}
	}
	if closedAt.Valid {
		t := closedAt.Time
		e.ClosedAt = &t
	}
	e.ApprovalState = domain.ApprovalState(approvalState.String)
	e.WorkNote = workNote.String
	e.ApprovalNote = approvalNote.String
	e.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		t := decidedAt.Time
		e.DecidedAt = &t
	}
	return &e, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// InsertOpenEntry 借助部分唯一索引 checkin_entries_one_open 一步完成"空位才插入"
func (r *PostgresEntriesRepository) InsertOpenEntry(ctx context.Context, entry *domain.CheckEntry) (*domain.CheckEntry, error) {
	if entry == nil || entry.WorkerID == "" {
		return nil, domain.ErrMissingWorker
	}
	if !entry.IsOpen() {
		return nil, fmt.Errorf("entry to insert must be open")
	}

	location, err := json.Marshal(entry.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal location: %w", err)
	}

	e := entry.Clone()
	e.EntryID = uuid.NewString()
	e.ApprovalState = domain.ApprovalNone

	query := `
		INSERT INTO checkin_entries (
			entry_id,
			worker_id,
			worker_name,
			activity_type,
			activity_sub_type,
			project_id,
			location,
			opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (worker_id, activity_type) WHERE closed_at IS NULL DO NOTHING
		RETURNING entry_id::text
	`

	var entryID string
	err = r.db.QueryRowContext(ctx, query,
		e.EntryID,
		e.WorkerID,
		e.WorkerName,
		string(e.ActivityType),
		nullString(string(e.ActivitySubType)),
		nullInt64(e.ProjectID),
		location,
		e.OpenedAt,
	).Scan(&entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAlreadyOpen
		}
		return nil, mapPQError(err, "insert entry")
	}
	e.EntryID = entryID
	return e, nil
}

// GetEntry 获取记录
func (r *PostgresEntriesRepository) GetEntry(ctx context.Context, entryID string) (*domain.CheckEntry, error) {
	if _, err := uuid.Parse(entryID); err != nil {
		return nil, domain.ErrNotFound
	}

	query := `SELECT` + entryColumns + `
		FROM checkin_entries
		WHERE entry_id = $1
	`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, mapPQError(err, "get entry")
	}
	return e, nil
}

// ListOpenEntries 某工人全部未签退记录
func (r *PostgresEntriesRepository) ListOpenEntries(ctx context.Context, workerID string) ([]*domain.CheckEntry, error) {
	if workerID == "" {
		return nil, domain.ErrMissingWorker
	}
	query := `SELECT` + entryColumns + `
		FROM checkin_entries
		WHERE worker_id = $1 AND closed_at IS NULL
		ORDER BY opened_at DESC
	`
	return r.query(ctx, "list open entries", query, workerID)
}

// CloseEntry 签退（条件更新：closed_at IS NULL）
func (r *PostgresEntriesRepository) CloseEntry(ctx context.Context, entryID string, closedAt time.Time, projectID *int64) (*domain.CheckEntry, error) {
	if _, err := uuid.Parse(entryID); err != nil {
		return nil, domain.ErrNotFound
	}

	query := `
		UPDATE checkin_entries
		SET
			closed_at = $2,
			approval_state = 'pending',
			project_id = COALESCE(project_id, $3)
		WHERE entry_id = $1 AND closed_at IS NULL
		RETURNING` + entryColumns

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, entryID, closedAt, nullInt64(projectID)))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapPQError(err, "close entry")
	}

	// 没有更新到：不存在或已签退
	if _, getErr := r.GetEntry(ctx, entryID); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrAlreadyClosed
}

// DecideEntry 审批（条件更新：approval_state = 'pending'）
func (r *PostgresEntriesRepository) DecideEntry(ctx context.Context, entryID string, d Decision) (*domain.CheckEntry, error) {
	if _, err := uuid.Parse(entryID); err != nil {
		return nil, domain.ErrNotFound
	}
	if !d.State.Terminal() {
		return nil, fmt.Errorf("invalid decision state: %q", d.State)
	}

	query := `
		UPDATE checkin_entries
		SET
			approval_state = $2,
			work_note = $3,
			approval_note = $4,
			decided_by = $5,
			decided_at = $6
		WHERE entry_id = $1 AND approval_state = 'pending'
		RETURNING` + entryColumns

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, entryID, string(d.State),
		nullString(d.WorkNote), nullString(d.ApprovalNote), nullString(d.DecidedBy), d.DecidedAt))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapPQError(err, "decide entry")
	}

	if _, getErr := r.GetEntry(ctx, entryID); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrNotPending
}

// ListEntries 按条件查询
func (r *PostgresEntriesRepository) ListEntries(ctx context.Context, filters *EntryFilters) ([]*domain.CheckEntry, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1

	if filters != nil {
		if len(filters.WorkerIDs) > 0 {
			where = append(where, fmt.Sprintf("worker_id = ANY($%d)", argN))
			args = append(args, pq.Array(filters.WorkerIDs))
			argN++
		}
		if filters.ActivityType != "" {
			where = append(where, fmt.Sprintf("activity_type = $%d", argN))
			args = append(args, string(filters.ActivityType))
			argN++
		}
		if filters.ProjectID != nil {
			where = append(where, fmt.Sprintf("project_id = $%d", argN))
			args = append(args, *filters.ProjectID)
			argN++
		}
		if filters.ApprovalState != domain.ApprovalNone {
			where = append(where, fmt.Sprintf("approval_state = $%d", argN))
			args = append(args, string(filters.ApprovalState))
			argN++
		}
		if filters.ClosedOnly {
			where = append(where, "closed_at IS NOT NULL")
		}
		if filters.From != nil {
			where = append(where, fmt.Sprintf("opened_at >= $%d", argN))
			args = append(args, *filters.From)
			argN++
		}
		if filters.To != nil {
			where = append(where, fmt.Sprintf("opened_at < $%d", argN))
			args = append(args, *filters.To)
		}
	}

	query := `SELECT` + entryColumns + `
		FROM checkin_entries
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY opened_at DESC, entry_id
	`
	return r.query(ctx, "list entries", query, args...)
}

// CountByApprovalState 已签退记录按审批状态计数
func (r *PostgresEntriesRepository) CountByApprovalState(ctx context.Context) (map[domain.ApprovalState]int, error) {
	query := `
		SELECT approval_state, COUNT(*)
		FROM checkin_entries
		WHERE closed_at IS NOT NULL
		GROUP BY approval_state
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapPQError(err, "count entries")
	}
	defer rows.Close()

	counts := make(map[domain.ApprovalState]int, len(domain.ApprovalStates))
	for _, s := range domain.ApprovalStates {
		counts[s] = 0
	}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[domain.ApprovalState(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapPQError(err, "iterate counts")
	}
	return counts, nil
}

func (r *PostgresEntriesRepository) query(ctx context.Context, op, query string, args ...any) ([]*domain.CheckEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapPQError(err, op)
	}
	defer rows.Close()

	entries := []*domain.CheckEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPQError(err, op)
	}
	return entries, nil
}
