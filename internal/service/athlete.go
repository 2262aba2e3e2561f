package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"strava-effort/internal/store"
)

// GetAthlete returns the cached athlete profile
func (s *SyncService) GetAthlete(ctx context.Context) (*store.Athlete, error) {
	return s.store.GetAthlete(ctx)
}

// RefreshAthlete refetches the profile and replaces the cached athlete. With
// preserveLocal the cached birth year and summary prefix carry over;
// otherwise they are reset.
func (s *SyncService) RefreshAthlete(ctx context.Context, preserveLocal bool) (*store.Athlete, error) {
	remote, err := s.api.GetAthlete(ctx)
	if err != nil {
		return nil, err
	}
	athlete := convertAthlete(remote)

	if preserveLocal {
		cached, err := s.store.GetAthlete(ctx)
		switch {
		case err == nil:
			athlete.BirthYear = cached.BirthYear
			athlete.LLMSummaryPrefix = cached.LLMSummaryPrefix
		case !errors.Is(err, store.ErrAthleteNotFound):
			return nil, fmt.Errorf("reading cached athlete: %w", err)
		}
	}

	if err := s.store.PutAthlete(ctx, athlete); err != nil {
		return nil, fmt.Errorf("caching athlete: %w", err)
	}
	return athlete, nil
}

// UpdateAthleteSettings sets the locally owned birth year and summary prefix
func (s *SyncService) UpdateAthleteSettings(ctx context.Context, birthYear *int, prefix string) error {
	if birthYear != nil && (*birthYear < MinBirthYear || *birthYear > time.Now().Year()) {
		return fmt.Errorf("birth year %d out of range", *birthYear)
	}

	athlete, err := s.store.GetAthlete(ctx)
	if err != nil {
		return err
	}
	return s.store.UpdateAthleteLocalFields(ctx, athlete.ID, birthYear, prefix)
}
