package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Sahaj33-op/msm/internal/models"
	"github.com/Sahaj33-op/msm/internal/msmerr"
)

const scheduleColumns = `id, server_id, action, cron, enabled, last_run, next_run, payload, created_at`

// ScheduleStore provides CRUD for scheduled actions
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// Get loads a schedule by id.
func (s *ScheduleStore) Get(id int64) (*models.Schedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	schedule, err := scanSchedule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &msmerr.NotFoundError{Kind: "schedule", ID: id}
	}
	return schedule, err
}

// Create inserts a new schedule and returns it with its assigned id.
func (s *ScheduleStore) Create(schedule *models.Schedule) (*models.Schedule, error) {
	res, err := s.db.Exec(`
		INSERT INTO schedules (server_id, action, cron, enabled, next_run, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, schedule.ServerID, string(schedule.Action), schedule.Cron, schedule.Enabled,
		nullTime(schedule.NextRun), nullString(schedule.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return s.Get(id)
}

// Update rewrites the mutable fields of a schedule.
func (s *ScheduleStore) Update(schedule *models.Schedule) error {
	res, err := s.db.Exec(`
		UPDATE schedules
		SET action = ?, cron = ?, enabled = ?, next_run = ?, payload = ?
		WHERE id = ?
	`, string(schedule.Action), schedule.Cron, schedule.Enabled,
		nullTime(schedule.NextRun), nullString(schedule.Payload), schedule.ID)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &msmerr.NotFoundError{Kind: "schedule", ID: schedule.ID}
	}
	return nil
}

// Delete removes a schedule.
func (s *ScheduleStore) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &msmerr.NotFoundError{Kind: "schedule", ID: id}
	}
	return nil
}

// List returns schedules, optionally filtered by server, ordered by next run.
func (s *ScheduleStore) List(serverID int64) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	args := []any{}
	if serverID > 0 {
		query += ` WHERE server_id = ?`
		args = append(args, serverID)
	}
	query += ` ORDER BY next_run`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

// ListDue returns enabled schedules whose next run is at or before now.
func (s *ScheduleStore) ListDue(now time.Time) ([]*models.Schedule, error) {
	rows, err := s.db.Query(`
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE enabled = 1 AND next_run IS NOT NULL AND next_run <= ?
		ORDER BY next_run
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

// UpdateRuns stamps last_run and the recomputed next_run after an execution.
func (s *ScheduleStore) UpdateRuns(id int64, lastRun time.Time, nextRun time.Time) error {
	_, err := s.db.Exec(`
		UPDATE schedules SET last_run = ?, next_run = ? WHERE id = ?
	`, lastRun, nextRun, id)
	if err != nil {
		return fmt.Errorf("failed to update run times: %w", err)
	}
	return nil
}

func scanSchedule(scan func(...any) error) (*models.Schedule, error) {
	var (
		schedule models.Schedule
		action   string
		lastRun  sql.NullTime
		nextRun  sql.NullTime
		payload  sql.NullString
	)

	if err := scan(
		&schedule.ID, &schedule.ServerID, &action, &schedule.Cron, &schedule.Enabled,
		&lastRun, &nextRun, &payload, &schedule.CreatedAt,
	); err != nil {
		return nil, err
	}

	schedule.Action = models.Action(action)
	if lastRun.Valid {
		t := lastRun.Time
		schedule.LastRun = &t
	}
	if nextRun.Valid {
		t := nextRun.Time
		schedule.NextRun = &t
	}
	if payload.Valid {
		schedule.Payload = payload.String
	}

	return &schedule, nil
}

func scanSchedules(rows *sql.Rows) ([]*models.Schedule, error) {
	var schedules []*models.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
