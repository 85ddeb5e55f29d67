package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventiq/eventiq/pkg/models"
	"github.com/google/uuid"
)

// HistoryRepository handles the append-only audit trail.
type HistoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *sql.DB, logger *slog.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Append inserts a new history event. Events are never updated.
func (r *HistoryRepository) Append(ctx context.Context, event *models.HistoryEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO history_events (
			id, request_id, action, old_status, new_status, level, actor, reason, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.RequestID, event.Action, event.OldStatus, event.NewStatus,
		event.Level, event.Actor, event.Reason, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append history event: %w", err)
	}

	return nil
}

// ByRequest returns the audit trail for a request in chronological order.
func (r *HistoryRepository) ByRequest(ctx context.Context, requestID string) ([]*models.HistoryEvent, error) {
	query := `
		SELECT
			id
		  , request_id
		  , action
		  , old_status
		  , new_status
		  , level
		  , actor
		  , reason
		  , timestamp
		FROM history_events
		WHERE request_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history events: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	events := make([]*models.HistoryEvent, 0)

	for rows.Next() {
		var event models.HistoryEvent

		err := rows.Scan(
			&event.ID, &event.RequestID, &event.Action, &event.OldStatus,
			&event.NewStatus, &event.Level, &event.Actor, &event.Reason,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history event: %w", err)
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history events: %w", err)
	}

	return events, nil
}
