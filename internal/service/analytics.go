package service

import (
	"context"
	"errors"
	"fmt"

	"strava-effort/internal/analysis"
	"strava-effort/internal/store"
)

// athleteOrNil returns the cached athlete, or nil when none is cached
func (s *SyncService) athleteOrNil(ctx context.Context) (*store.Athlete, error) {
	athlete, err := s.store.GetAthlete(ctx)
	if errors.Is(err, store.ErrAthleteNotFound) {
		return nil, nil
	}
	return athlete, err
}

// ZoneDistribution returns the time-in-zone breakdown for an activity, or
// nil when heart rate or birth year is unavailable
func (s *SyncService) ZoneDistribution(ctx context.Context, id int64) ([]analysis.ZoneTime, error) {
	res, err := s.GetActivityDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	athlete, err := s.athleteOrNil(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.ZoneTimeDistribution(res.Detail, athlete), nil
}

// RelativeEffort scores an activity, or returns nil when heart rate or birth
// year is unavailable
func (s *SyncService) RelativeEffort(ctx context.Context, id int64) (*analysis.Effort, error) {
	res, err := s.GetActivityDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	athlete, err := s.athleteOrNil(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.RelativeEffort(res.Detail, athlete), nil
}

// CompareCohort ranks an activity's effort against the cached activities of
// the same month or year. Cohort details are loaded cache-first.
func (s *SyncService) CompareCohort(ctx context.Context, id int64, period analysis.Period) (*analysis.CohortComparison, error) {
	res, err := s.GetActivityDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading activity %d: %w", id, err)
	}
	athlete, err := s.athleteOrNil(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.store.AllActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cached activities: %w", err)
	}

	fetch := func(ctx context.Context, id int64) (*store.ActivityDetail, error) {
		res, err := s.GetActivityDetail(ctx, id)
		if err != nil {
			s.log.Debug().Int64("activity_id", id).Err(err).Msg("skipping cohort candidate")
			return nil, err
		}
		return res.Detail, nil
	}
	return analysis.CompareCohort(ctx, res.Detail, all, period, athlete, fetch)
}
