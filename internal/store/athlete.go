package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const athleteColumns = `id, username, firstname, lastname, city, state, country, sex, premium,
	profile, weight, created_at, updated_at, birth_year, llm_summary_prefix`

// GetAthlete returns the cached athlete. At most one is ever cached.
func (s *Store) GetAthlete(ctx context.Context) (*Athlete, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+athleteColumns+` FROM athlete ORDER BY id LIMIT 1`)
	a, err := scanAthlete(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAthleteNotFound
	}
	return a, err
}

// GetAthleteByID returns the cached athlete with the given ID.
func (s *Store) GetAthleteByID(ctx context.Context, id int64) (*Athlete, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+athleteColumns+` FROM athlete WHERE id = ?`, id)
	a, err := scanAthlete(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAthleteNotFound
	}
	return a, err
}

// PutAthlete stores a as the cached athlete. Rows for any other athlete are
// removed in the same transaction, so at most one athlete is ever cached.
func (s *Store) PutAthlete(ctx context.Context, a *Athlete) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM athlete WHERE id <> ?`, a.ID); err != nil {
			return fmt.Errorf("removing other athletes: %w", err)
		}
		return putAthlete(ctx, tx, a)
	})
}

func putAthlete(ctx context.Context, db execer, a *Athlete) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO athlete (`+athleteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			firstname = excluded.firstname,
			lastname = excluded.lastname,
			city = excluded.city,
			state = excluded.state,
			country = excluded.country,
			sex = excluded.sex,
			premium = excluded.premium,
			profile = excluded.profile,
			weight = excluded.weight,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			birth_year = excluded.birth_year,
			llm_summary_prefix = excluded.llm_summary_prefix
	`,
		a.ID, a.Username, a.FirstName, a.LastName, a.City, a.State, a.Country, a.Sex, boolToInt(a.Premium),
		a.ProfileURL, a.Weight, formatTime(a.CreatedAt), formatTime(a.UpdatedAt), a.BirthYear, a.LLMSummaryPrefix,
	)
	if err != nil {
		return fmt.Errorf("storing athlete %d: %w", a.ID, err)
	}
	return nil
}

// UpdateAthleteLocalFields sets the locally owned birth year and summary prefix.
func (s *Store) UpdateAthleteLocalFields(ctx context.Context, id int64, birthYear *int, prefix string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE athlete SET birth_year = ?, llm_summary_prefix = ? WHERE id = ?
	`, birthYear, prefix, id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrAthleteNotFound)
}

// DeleteAthlete removes the cached athlete with the given ID. Deleting a
// missing athlete is not an error.
func (s *Store) DeleteAthlete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM athlete WHERE id = ?`, id)
	return err
}

// ListAthletes returns the athlete table contents.
func (s *Store) ListAthletes(ctx context.Context) ([]Athlete, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+athleteColumns+` FROM athlete ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	athletes := []Athlete{}
	for rows.Next() {
		a, err := scanAthlete(rows)
		if err != nil {
			return nil, err
		}
		athletes = append(athletes, *a)
	}
	return athletes, rows.Err()
}

// CountAthletes returns the number of cached athletes.
func (s *Store) CountAthletes(ctx context.Context) (int, error) {
	return s.Count(ctx, TableAthlete)
}

// ClearAthlete empties the athlete table.
func (s *Store) ClearAthlete(ctx context.Context) error {
	return s.clearTable(ctx, TableAthlete)
}

func scanAthlete(row rowScanner) (*Athlete, error) {
	var a Athlete
	var premium int
	var createdAt, updatedAt string

	err := row.Scan(
		&a.ID, &a.Username, &a.FirstName, &a.LastName, &a.City, &a.State, &a.Country, &a.Sex, &premium,
		&a.ProfileURL, &a.Weight, &createdAt, &updatedAt, &a.BirthYear, &a.LLMSummaryPrefix,
	)
	if err != nil {
		return nil, err
	}

	a.Premium = premium == 1
	if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
