package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

func loadEvents(ctx context.Context, q queryer, planID uuid.UUID) ([]*domain.ScheduleEvent, error) {
	query := `
		SELECT
			id,
			day_plan_id,
			tenant_id,
			kind,
			job_id,
			sequence_order,
			scheduled_start,
			duration_minutes,
			status,
			latitude,
			longitude,
			notes,
			created_at
		FROM day_plan_events
		WHERE day_plan_id = $1
		ORDER BY sequence_order
	`

	rows, err := q.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*domain.ScheduleEvent{}
	for rows.Next() {
		var (
			ev        domain.ScheduleEvent
			jobID     uuid.NullUUID
			latitude  sql.NullFloat64
			longitude sql.NullFloat64
			notes     sql.NullString
		)
		dst := []any{
			&ev.ID,
			&ev.DayPlanID,
			&ev.TenantID,
			&ev.Kind,
			&jobID,
			&ev.SequenceOrder,
			&ev.ScheduledStart,
			&ev.DurationMinutes,
			&ev.Status,
			&latitude,
			&longitude,
			&notes,
			&ev.CreatedAt,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		if jobID.Valid {
			ev.JobID = &jobID.UUID
		}
		if latitude.Valid && longitude.Valid {
			ev.Location = &domain.Location{Latitude: latitude.Float64, Longitude: longitude.Float64}
		}
		if notes.Valid {
			ev.Notes = &notes.String
		}
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// syncEvents writes the difference between two versions of a plan's event
// list. Only sequence_order and status change on existing events.
func syncEvents(ctx context.Context, tx *sql.Tx, before, after []*domain.ScheduleEvent) error {
	old := make(map[uuid.UUID]*domain.ScheduleEvent, len(before))
	for _, ev := range before {
		old[ev.ID] = ev
	}

	kept := make(map[uuid.UUID]struct{}, len(after))
	for _, ev := range after {
		kept[ev.ID] = struct{}{}
	}

	for _, ev := range before {
		if _, ok := kept[ev.ID]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM day_plan_events WHERE id = $1`, ev.ID); err != nil {
			return err
		}
	}

	for _, ev := range after {
		prev, ok := old[ev.ID]
		switch {
		case !ok:
			if err := insertEvent(ctx, tx, ev); err != nil {
				return err
			}
		case prev.SequenceOrder != ev.SequenceOrder || prev.Status != ev.Status:
			query := `UPDATE day_plan_events SET sequence_order = $1, status = $2 WHERE id = $3`
			if _, err := tx.ExecContext(ctx, query, ev.SequenceOrder, ev.Status, ev.ID); err != nil {
				return err
			}
		}
	}

	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev *domain.ScheduleEvent) error {
	query := `
		INSERT INTO day_plan_events (
			id,
			day_plan_id,
			tenant_id,
			kind,
			job_id,
			sequence_order,
			scheduled_start,
			duration_minutes,
			status,
			latitude,
			longitude,
			notes,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	var (
		jobID     uuid.NullUUID
		latitude  sql.NullFloat64
		longitude sql.NullFloat64
		notes     sql.NullString
	)
	if ev.JobID != nil {
		jobID = uuid.NullUUID{UUID: *ev.JobID, Valid: true}
	}
	if ev.Location != nil {
		latitude = sql.NullFloat64{Float64: ev.Location.Latitude, Valid: true}
		longitude = sql.NullFloat64{Float64: ev.Location.Longitude, Valid: true}
	}
	if ev.Notes != nil {
		notes = sql.NullString{String: *ev.Notes, Valid: true}
	}

	params := []any{
		ev.ID,
		ev.DayPlanID,
		ev.TenantID,
		ev.Kind,
		jobID,
		ev.SequenceOrder,
		ev.ScheduledStart,
		ev.DurationMinutes,
		ev.Status,
		latitude,
		longitude,
		notes,
		ev.CreatedAt,
	}
	_, err := tx.ExecContext(ctx, query, params...)
	return err
}
