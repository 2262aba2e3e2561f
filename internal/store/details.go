package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// GetDetail returns the cached detail for an activity. The detail may lack
// streams; callers check Complete.
func (s *Store) GetDetail(ctx context.Context, id int64) (*ActivityDetail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT summary, description, calories, device_name, streams
		FROM activity_details
		WHERE id = ?
	`, id)

	d, err := scanDetail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDetailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading detail %d: %w", id, err)
	}
	return d, nil
}

// PutDetail inserts or replaces the detail for d.ID.
func (s *Store) PutDetail(ctx context.Context, d *ActivityDetail) error {
	return putDetail(ctx, s.db, d)
}

func putDetail(ctx context.Context, db execer, d *ActivityDetail) error {
	summary, streams, err := encodeDetail(d)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO activity_details (id, summary, description, calories, device_name, streams, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			summary = excluded.summary,
			description = excluded.description,
			calories = excluded.calories,
			device_name = excluded.device_name,
			streams = excluded.streams,
			updated_at = CURRENT_TIMESTAMP
	`, d.ID, summary, d.Description, d.Calories, d.DeviceName, streams)
	if err != nil {
		return fmt.Errorf("storing detail %d: %w", d.ID, err)
	}
	return nil
}

// UpdateDetail overwrites an existing detail, failing with ErrDetailNotFound
// when none is cached.
func (s *Store) UpdateDetail(ctx context.Context, d *ActivityDetail) error {
	summary, streams, err := encodeDetail(d)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE activity_details
		SET summary = ?, description = ?, calories = ?, device_name = ?, streams = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, summary, d.Description, d.Calories, d.DeviceName, streams, d.ID)
	if err != nil {
		return err
	}
	return requireRow(result, ErrDetailNotFound)
}

// DeleteDetail removes the cached detail for one activity.
func (s *Store) DeleteDetail(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM activity_details WHERE id = ?`, id)
	return err
}

// ListDetails returns every cached detail ordered by activity ID.
func (s *Store) ListDetails(ctx context.Context) ([]ActivityDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT summary, description, calories, device_name, streams
		FROM activity_details
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := []ActivityDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, rows.Err()
}

// CountDetails returns the number of cached details.
func (s *Store) CountDetails(ctx context.Context) (int, error) {
	return s.Count(ctx, TableActivityDetails)
}

// ClearDetails empties the detail cache.
func (s *Store) ClearDetails(ctx context.Context) error {
	return s.clearTable(ctx, TableActivityDetails)
}

func encodeDetail(d *ActivityDetail) (string, sql.NullString, error) {
	summary, err := json.Marshal(d.Activity)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("encoding detail %d summary: %w", d.ID, err)
	}
	if d.Streams == nil {
		return string(summary), sql.NullString{}, nil
	}
	streams, err := json.Marshal(d.Streams)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("encoding detail %d streams: %w", d.ID, err)
	}
	return string(summary), sql.NullString{String: string(streams), Valid: true}, nil
}

func scanDetail(row rowScanner) (*ActivityDetail, error) {
	var d ActivityDetail
	var summary string
	var streams sql.NullString

	if err := row.Scan(&summary, &d.Description, &d.Calories, &d.DeviceName, &streams); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(summary), &d.Activity); err != nil {
		return nil, fmt.Errorf("decoding detail summary: %w", err)
	}
	if streams.Valid {
		d.Streams = &StreamData{}
		if err := json.Unmarshal([]byte(streams.String), d.Streams); err != nil {
			return nil, fmt.Errorf("decoding detail streams: %w", err)
		}
	}
	return &d, nil
}
