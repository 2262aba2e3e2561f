package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const activityColumns = `id, athlete_id, name, type, sport_type, start_date, start_date_local, timezone,
	distance, moving_time, elapsed_time, total_elevation_gain,
	average_speed, max_speed, average_heartrate, max_heartrate,
	average_watts, max_watts, average_cadence, suffer_score, has_heartrate`

// UpsertActivity inserts or replaces an activity. Last write wins.
func (s *Store) UpsertActivity(ctx context.Context, a *Activity) error {
	return upsertActivity(ctx, s.db, a)
}

// UpsertActivities upserts a batch of activities in one transaction.
func (s *Store) UpsertActivities(ctx context.Context, activities []Activity) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range activities {
			if err := upsertActivity(ctx, tx, &activities[i]); err != nil {
				return fmt.Errorf("upserting activity %d: %w", activities[i].ID, err)
			}
		}
		return nil
	})
}

func upsertActivity(ctx context.Context, db execer, a *Activity) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO activities (`+activityColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			type = excluded.type,
			sport_type = excluded.sport_type,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			timezone = excluded.timezone,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			elapsed_time = excluded.elapsed_time,
			total_elevation_gain = excluded.total_elevation_gain,
			average_speed = excluded.average_speed,
			max_speed = excluded.max_speed,
			average_heartrate = excluded.average_heartrate,
			max_heartrate = excluded.max_heartrate,
			average_watts = excluded.average_watts,
			max_watts = excluded.max_watts,
			average_cadence = excluded.average_cadence,
			suffer_score = excluded.suffer_score,
			has_heartrate = excluded.has_heartrate,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.AthleteID, a.Name, a.Type, a.SportType,
		formatTime(a.StartDate), formatTime(a.StartDateLocal), a.Timezone,
		a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain,
		a.AverageSpeed, a.MaxSpeed, a.AverageHeartrate, a.MaxHeartrate,
		a.AverageWatts, a.MaxWatts, a.AverageCadence, a.SufferScore, boolToInt(a.HasHeartrate),
	)
	return err
}

// UpdateActivity overwrites an existing activity, failing with
// ErrActivityNotFound when it is not cached.
func (s *Store) UpdateActivity(ctx context.Context, a *Activity) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE activities SET
			athlete_id = ?, name = ?, type = ?, sport_type = ?, start_date = ?, start_date_local = ?,
			timezone = ?, distance = ?, moving_time = ?, elapsed_time = ?, total_elevation_gain = ?,
			average_speed = ?, max_speed = ?, average_heartrate = ?, max_heartrate = ?,
			average_watts = ?, max_watts = ?, average_cadence = ?, suffer_score = ?, has_heartrate = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		a.AthleteID, a.Name, a.Type, a.SportType, formatTime(a.StartDate), formatTime(a.StartDateLocal),
		a.Timezone, a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain,
		a.AverageSpeed, a.MaxSpeed, a.AverageHeartrate, a.MaxHeartrate,
		a.AverageWatts, a.MaxWatts, a.AverageCadence, a.SufferScore, boolToInt(a.HasHeartrate),
		a.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result, ErrActivityNotFound)
}

// GetActivity retrieves an activity by ID
func (s *Store) GetActivity(ctx context.Context, id int64) (*Activity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)

	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	return a, err
}

// DeleteActivity removes one activity. Deleting a missing activity is not an error.
func (s *Store) DeleteActivity(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	return err
}

// ListActivities returns a page of activities ordered by local start time descending
func (s *Store) ListActivities(ctx context.Context, limit, offset int) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		ORDER BY start_date_local DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// AllActivities returns every cached activity, most recent first
func (s *Store) AllActivities(ctx context.Context) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		ORDER BY start_date_local DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// CountActivities returns the total number of activities
func (s *Store) CountActivities(ctx context.Context) (int, error) {
	return s.Count(ctx, TableActivities)
}

// ClearActivities empties the activities table
func (s *Store) ClearActivities(ctx context.Context) error {
	return s.clearTable(ctx, TableActivities)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanActivity scans a single activity
func scanActivity(row rowScanner) (*Activity, error) {
	var a Activity
	var startDate, startDateLocal string
	var hasHR int

	err := row.Scan(
		&a.ID, &a.AthleteID, &a.Name, &a.Type, &a.SportType, &startDate, &startDateLocal, &a.Timezone,
		&a.Distance, &a.MovingTime, &a.ElapsedTime, &a.TotalElevationGain,
		&a.AverageSpeed, &a.MaxSpeed, &a.AverageHeartrate, &a.MaxHeartrate,
		&a.AverageWatts, &a.MaxWatts, &a.AverageCadence, &a.SufferScore, &hasHR,
	)
	if err != nil {
		return nil, err
	}

	if a.StartDate, err = parseTime("start_date", startDate); err != nil {
		return nil, err
	}
	if a.StartDateLocal, err = parseTime("start_date_local", startDateLocal); err != nil {
		return nil, err
	}
	a.HasHeartrate = hasHR == 1

	return &a, nil
}

// scanActivities scans multiple activities from rows
func scanActivities(rows *sql.Rows) ([]Activity, error) {
	activities := []Activity{}

	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}

	return activities, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s %q: %w", field, value, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
