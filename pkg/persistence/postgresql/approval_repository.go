package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/persistence"
	"github.com/google/uuid"
)

// ApprovalRepository handles the per-level approval ledger.
type ApprovalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewApprovalRepository creates a new approval repository.
func NewApprovalRepository(db *sql.DB, logger *slog.Logger) *ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

const approvalColumns = `
	id
  , request_id
  , level
  , assigned_approver
  , required_role
  , decision
  , comment
  , decided_at
  , decided_by
  , expected_response_at
  , reminder_count
  , last_reminder_at
  , escalation_triggered
  , delegated_to
  , superseded
  , created_at
  , updated_at
`

// ByRequest returns all records for a request ordered by level then creation time.
func (r *ApprovalRepository) ByRequest(ctx context.Context, requestID string) ([]*models.ApprovalRecord, error) {
	query := `SELECT ` + approvalColumns + `
		FROM approval_records
		WHERE request_id = $1
		ORDER BY level ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval records: %w", err)
	}

	defer r.closeRows(ctx, rows)

	return r.collectRecords(rows)
}

// ActiveRecord returns the non-superseded pending record for a level.
func (r *ApprovalRepository) ActiveRecord(ctx context.Context, requestID string, level int) (*models.ApprovalRecord, error) {
	query := `SELECT ` + approvalColumns + `
		FROM approval_records
		WHERE request_id = $1
		  AND level = $2
		  AND decision = 'pending'
		  AND superseded = false
		ORDER BY created_at DESC
		LIMIT 1`

	record, err := r.scanRecord(r.db.QueryRowContext(ctx, query, requestID, level))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrApprovalNotFound
		}

		return nil, fmt.Errorf("failed to scan approval record: %w", err)
	}

	return record, nil
}

// OverdueRecords returns active records whose deadline has passed.
func (r *ApprovalRepository) OverdueRecords(ctx context.Context, now time.Time) ([]*models.ApprovalRecord, error) {
	query := `SELECT ` + approvalColumns + `
		FROM approval_records
		WHERE decision = 'pending'
		  AND superseded = false
		  AND expected_response_at IS NOT NULL
		  AND expected_response_at < $1
		ORDER BY expected_response_at ASC`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue records: %w", err)
	}

	defer r.closeRows(ctx, rows)

	return r.collectRecords(rows)
}

// Save inserts or updates an approval record.
func (r *ApprovalRepository) Save(ctx context.Context, record *models.ApprovalRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now

	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	var expectedAt any
	if !record.ExpectedResponseAt.IsZero() {
		expectedAt = record.ExpectedResponseAt
	}

	query := `
		INSERT INTO approval_records (
			id, request_id, level, assigned_approver, required_role, decision,
			comment, decided_at, decided_by, expected_response_at, reminder_count,
			last_reminder_at, escalation_triggered, delegated_to, superseded,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			assigned_approver = EXCLUDED.assigned_approver,
			decision = EXCLUDED.decision,
			comment = EXCLUDED.comment,
			decided_at = EXCLUDED.decided_at,
			decided_by = EXCLUDED.decided_by,
			expected_response_at = EXCLUDED.expected_response_at,
			reminder_count = EXCLUDED.reminder_count,
			last_reminder_at = EXCLUDED.last_reminder_at,
			escalation_triggered = EXCLUDED.escalation_triggered,
			delegated_to = EXCLUDED.delegated_to,
			superseded = EXCLUDED.superseded,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.RequestID, record.Level, record.AssignedApprover,
		record.RequiredRole, record.Decision, record.Comment, record.DecidedAt,
		record.DecidedBy, expectedAt, record.ReminderCount, record.LastReminderAt,
		record.EscalationTriggered, record.DelegatedTo, record.Superseded,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save approval record %s: %w", record.ID, err)
	}

	return nil
}

func (r *ApprovalRepository) collectRecords(rows *sql.Rows) ([]*models.ApprovalRecord, error) {
	records := make([]*models.ApprovalRecord, 0)

	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval record: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval records: %w", err)
	}

	return records, nil
}

func (r *ApprovalRepository) scanRecord(row rowScanner) (*models.ApprovalRecord, error) {
	var (
		record     models.ApprovalRecord
		expectedAt sql.NullTime
	)

	err := row.Scan(
		&record.ID, &record.RequestID, &record.Level, &record.AssignedApprover,
		&record.RequiredRole, &record.Decision, &record.Comment, &record.DecidedAt,
		&record.DecidedBy, &expectedAt, &record.ReminderCount, &record.LastReminderAt,
		&record.EscalationTriggered, &record.DelegatedTo, &record.Superseded,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if expectedAt.Valid {
		record.ExpectedResponseAt = expectedAt.Time
	}

	return &record, nil
}

func (r *ApprovalRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
