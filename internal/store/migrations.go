package store

import (
	"context"
	"database/sql"
)

// Table names, in export order.
const (
	TableSettings        = "settings"
	TableAthlete         = "athlete"
	TableActivities      = "activities"
	TableActivityDetails = "activity_details"
)

// Tables lists every cache table.
var Tables = []string{TableSettings, TableAthlete, TableActivities, TableActivityDetails}

// migrate runs all database migrations
func migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		// Credentials (singleton row)
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			client_id TEXT NOT NULL DEFAULT '',
			client_secret TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at INTEGER NOT NULL DEFAULT 0,
			scope TEXT NOT NULL DEFAULT '',
			athlete_id INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Athlete profile plus local extensions
		`CREATE TABLE IF NOT EXISTS athlete (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			firstname TEXT NOT NULL DEFAULT '',
			lastname TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			sex TEXT NOT NULL DEFAULT '',
			premium INTEGER NOT NULL DEFAULT 0,
			profile TEXT NOT NULL DEFAULT '',
			weight REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			birth_year INTEGER,
			llm_summary_prefix TEXT NOT NULL DEFAULT ''
		)`,

		// Activities (summary data from /athlete/activities)
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY,
			athlete_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			sport_type TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			start_date_local TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT '',
			distance REAL NOT NULL,
			moving_time INTEGER NOT NULL,
			elapsed_time INTEGER NOT NULL,
			total_elevation_gain REAL NOT NULL DEFAULT 0,
			average_speed REAL NOT NULL DEFAULT 0,
			max_speed REAL NOT NULL DEFAULT 0,
			average_heartrate REAL,
			max_heartrate REAL,
			average_watts REAL,
			max_watts REAL,
			average_cadence REAL,
			suffer_score INTEGER,
			has_heartrate INTEGER NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_start_date_local ON activities(start_date_local)`,

		// Activity details (/activities/{id}), streams stored as a JSON bundle
		`CREATE TABLE IF NOT EXISTS activity_details (
			id INTEGER PRIMARY KEY,
			summary TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			calories REAL NOT NULL DEFAULT 0,
			device_name TEXT NOT NULL DEFAULT '',
			streams TEXT,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}

	return nil
}
