package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/domain/entity"
	"go.uber.org/zap"
)

// TimelineRepository implements port.TimelineRepository on sqlite
type TimelineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(db *sql.DB, logger *zap.Logger) *TimelineRepository {
	return &TimelineRepository{
		db:     db,
		logger: logger,
	}
}

// Append adds an event to the end of a request's timeline
func (r *TimelineRepository) Append(ctx context.Context, evt *entity.TimelineEvent) error {
	query := `
		INSERT INTO timeline_events (
			id, request_id, stage, decision,
			actor_id, actor_name, actor_role,
			comment, from_status, to_status, event_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		evt.ID, evt.RequestID, evt.Stage, evt.Decision,
		evt.Actor.ID, evt.Actor.Name, evt.Actor.Role,
		evt.Comment, evt.FromStatus, evt.ToStatus, evt.Type, evt.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append timeline event",
			zap.String("request_id", evt.RequestID),
			zap.String("stage", evt.Stage),
			zap.Error(err))
		return fmt.Errorf("failed to append timeline event: %w", err)
	}

	return nil
}

// ListByRequestID retrieves a request's timeline, oldest first
func (r *TimelineRepository) ListByRequestID(ctx context.Context, requestID string) ([]*entity.TimelineEvent, error) {
	query := `
		SELECT id, request_id, stage, decision,
			actor_id, actor_name, actor_role,
			comment, from_status, to_status, event_type, created_at
		FROM timeline_events
		WHERE request_id = ?
		ORDER BY seq ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get timeline", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}
	defer rows.Close()

	events := []*entity.TimelineEvent{}
	for rows.Next() {
		var evt entity.TimelineEvent
		err := rows.Scan(
			&evt.ID, &evt.RequestID, &evt.Stage, &evt.Decision,
			&evt.Actor.ID, &evt.Actor.Name, &evt.Actor.Role,
			&evt.Comment, &evt.FromStatus, &evt.ToStatus, &evt.Type, &evt.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timeline event: %w", err)
		}
		events = append(events, &evt)
	}

	return events, rows.Err()
}

var _ port.TimelineRepository = (*TimelineRepository)(nil)
