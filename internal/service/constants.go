package service

import "time"

const (
	// DefaultBackfillDelay separates consecutive requests during a backfill
	DefaultBackfillDelay = 200 * time.Millisecond

	// DefaultPageSize is the activity page size when the caller passes none
	DefaultPageSize = 30

	// MinBirthYear bounds the birth year accepted for HR estimation
	MinBirthYear = 1900
)
