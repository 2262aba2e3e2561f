package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"strava-effort/internal/apperr"
)

// SnapshotVersion is the export document version written by ExportAll.
const SnapshotVersion = 1

// Snapshot is the full contents of the cache.
type Snapshot struct {
	Version         int              `json:"version"`
	Timestamp       string           `json:"timestamp"`
	Settings        []Credentials    `json:"settings"`
	Activities      []Activity       `json:"activities"`
	ActivityDetails []ActivityDetail `json:"activityDetails"`
	Athlete         []Athlete        `json:"athlete"`
}

// rawSnapshot keeps version and timestamp as pointers so a missing field can
// be told apart from a zero value.
type rawSnapshot struct {
	Version         *int             `json:"version"`
	Timestamp       *string          `json:"timestamp"`
	Settings        []Credentials    `json:"settings"`
	Activities      []Activity       `json:"activities"`
	ActivityDetails []ActivityDetail `json:"activityDetails"`
	Athlete         []Athlete        `json:"athlete"`
}

// Stats summarises the cache.
type Stats struct {
	Counts map[string]int
	// ApproxSizeBytes is the length of the JSON export, or -1 when unknown.
	ApproxSizeBytes int64
}

// ExportAll captures every table.
func (s *Store) ExportAll(ctx context.Context) (*Snapshot, error) {
	settings, err := s.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting settings: %w", err)
	}
	activities, err := s.AllActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting activities: %w", err)
	}
	details, err := s.ListDetails(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting activity details: %w", err)
	}
	athletes, err := s.ListAthletes(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting athlete: %w", err)
	}

	return &Snapshot{
		Version:         SnapshotVersion,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Settings:        settings,
		Activities:      activities,
		ActivityDetails: details,
		Athlete:         athletes,
	}, nil
}

// ExportJSON serialises ExportAll.
func (s *Store) ExportJSON(ctx context.Context) ([]byte, error) {
	snap, err := s.ExportAll(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// ImportJSON decodes and imports an export document.
func (s *Store) ImportJSON(ctx context.Context, data []byte) error {
	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperr.Data("malformed import document", err)
	}
	if raw.Version == nil {
		return apperr.Data("import document has no version", nil)
	}
	if raw.Timestamp == nil {
		return apperr.Data("import document has no timestamp", nil)
	}

	return s.ImportAll(ctx, &Snapshot{
		Version:         *raw.Version,
		Timestamp:       *raw.Timestamp,
		Settings:        raw.Settings,
		Activities:      raw.Activities,
		ActivityDetails: raw.ActivityDetails,
		Athlete:         raw.Athlete,
	})
}

// ImportAll replaces the whole cache with snap. The snapshot is validated
// before anything is touched, and the clear and insert stages share one
// transaction.
func (s *Store) ImportAll(ctx context.Context, snap *Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range Tables {
			if err := clearTable(ctx, tx, t); err != nil {
				return err
			}
		}
		for i := range snap.Settings {
			if err := saveCredentials(ctx, tx, &snap.Settings[i]); err != nil {
				return fmt.Errorf("importing settings: %w", err)
			}
		}
		for i := range snap.Athlete {
			if err := putAthlete(ctx, tx, &snap.Athlete[i]); err != nil {
				return err
			}
		}
		for i := range snap.Activities {
			if err := upsertActivity(ctx, tx, &snap.Activities[i]); err != nil {
				return fmt.Errorf("importing activity %d: %w", snap.Activities[i].ID, err)
			}
		}
		for i := range snap.ActivityDetails {
			if err := putDetail(ctx, tx, &snap.ActivityDetails[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("importing snapshot: %w", err)
	}
	return nil
}

func validateSnapshot(snap *Snapshot) error {
	if snap == nil {
		return apperr.Data("empty import document", nil)
	}
	if snap.Version < 1 {
		return apperr.Data(fmt.Sprintf("invalid version %d", snap.Version), nil)
	}
	if snap.Version > SnapshotVersion {
		return apperr.Data(fmt.Sprintf("unsupported version %d (newest known is %d)", snap.Version, SnapshotVersion), nil)
	}
	if snap.Timestamp == "" {
		return apperr.Data("import document has no timestamp", nil)
	}
	if _, err := time.Parse(time.RFC3339, snap.Timestamp); err != nil {
		return apperr.Data("invalid timestamp", err)
	}
	if len(snap.Settings) > 1 {
		return apperr.Data(fmt.Sprintf("import has %d settings records, want at most 1", len(snap.Settings)), nil)
	}
	if len(snap.Athlete) > 1 {
		return apperr.Data(fmt.Sprintf("import has %d athlete records, want at most 1", len(snap.Athlete)), nil)
	}
	return nil
}

// Stats returns per-table row counts and the approximate cache size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Counts: make(map[string]int, len(Tables)), ApproxSizeBytes: -1}
	for _, t := range Tables {
		n, err := s.Count(ctx, t)
		if err != nil {
			return st, err
		}
		st.Counts[t] = n
	}

	if data, err := s.ExportJSON(ctx); err == nil {
		st.ApproxSizeBytes = int64(len(data))
	}
	return st, nil
}

// ResetAll drops every table and recreates the schema.
func (s *Store) ResetAll(ctx context.Context) error {
	for _, t := range Tables {
		if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+t); err != nil {
			return fmt.Errorf("dropping %s: %w", t, err)
		}
	}
	if err := migrate(ctx, s.db); err != nil {
		return fmt.Errorf("recreating schema: %w", err)
	}
	return nil
}
