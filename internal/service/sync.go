package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"strava-effort/internal/logging"
	"strava-effort/internal/store"
	"strava-effort/internal/strava"
)

// ErrInvalidSet is returned when a backfill set has zero or duplicate IDs
var ErrInvalidSet = errors.New("invalid activity set")

// RemoteAPI is the subset of the Strava client the service calls
type RemoteAPI interface {
	GetAthlete(ctx context.Context) (*strava.Athlete, error)
	GetActivities(ctx context.Context, page, perPage int) ([]strava.Activity, error)
	GetActivity(ctx context.Context, id int64) (*strava.DetailedActivity, error)
	GetActivityStreams(ctx context.Context, id int64, kinds []string) (*strava.Streams, error)
}

// Session reports and ends the authenticated session
type Session interface {
	HasCredentials(ctx context.Context) bool
	Logout(ctx context.Context) error
	Forget()
}

// Options tunes a SyncService
type Options struct {
	BackfillDelay time.Duration // 0 means DefaultBackfillDelay; negative disables
	Logger        zerolog.Logger
}

// SyncService orchestrates fetching from Strava and writing through to the cache
type SyncService struct {
	api     RemoteAPI
	session Session
	store   *store.Store
	delay   time.Duration
	log     zerolog.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(api RemoteAPI, session Session, st *store.Store, opts Options) *SyncService {
	delay := opts.BackfillDelay
	switch {
	case delay == 0:
		delay = DefaultBackfillDelay
	case delay < 0:
		delay = 0
	}
	return &SyncService{
		api:     api,
		session: session,
		store:   st,
		delay:   delay,
		log:     logging.Component(opts.Logger, "sync"),
	}
}

// DetailResult is the outcome of a detail fetch
type DetailResult struct {
	Detail    *store.ActivityDetail
	FromCache bool
	// StreamErr is set when the detail was fetched but its streams were not.
	StreamErr error
}

// StreamsUnavailable reports whether the detail was stored without streams
func (r *DetailResult) StreamsUnavailable() bool {
	return r.StreamErr != nil
}

// ItemError records one failed backfill item
type ItemError struct {
	ActivityID int64
	Err        error
}

// BackfillResult contains the results of a backfill
type BackfillResult struct {
	SuccessCount int
	ErrorCount   int
	// StreamsMissing counts successes whose streams could not be fetched.
	StreamsMissing int
	Errors         []ItemError
}

// ListActivities returns one page of activities, newest first. When
// authenticated the page comes from Strava and is written through to the
// cache; otherwise it is served from the cache.
func (s *SyncService) ListActivities(ctx context.Context, page, pageSize int) ([]store.Activity, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	if !s.session.HasCredentials(ctx) {
		s.log.Debug().Int("page", page).Msg("not authenticated, serving cached activities")
		return s.store.ListActivities(ctx, pageSize, (page-1)*pageSize)
	}

	remote, err := s.api.GetActivities(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching page %d: %w", page, err)
	}

	activities := make([]store.Activity, len(remote))
	for i, a := range remote {
		activities[i] = convertActivity(a)
	}
	if err := s.store.UpsertActivities(ctx, activities); err != nil {
		return nil, fmt.Errorf("caching page %d: %w", page, err)
	}

	s.log.Debug().Int("page", page).Int("count", len(activities)).Msg("activities fetched")
	return activities, nil
}

// GetActivityDetail returns an activity's detail with streams. A cached
// detail is used only when it carries streams. A stream fetch failure does
// not fail the call: the detail is cached without streams and the failure is
// reported in DetailResult.StreamErr.
func (s *SyncService) GetActivityDetail(ctx context.Context, id int64) (*DetailResult, error) {
	cached, err := s.store.GetDetail(ctx, id)
	switch {
	case err == nil && cached.Complete():
		return &DetailResult{Detail: cached, FromCache: true}, nil
	case err != nil && !errors.Is(err, store.ErrDetailNotFound):
		return nil, fmt.Errorf("reading cached detail %d: %w", id, err)
	}

	remote, err := s.api.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := convertDetail(remote)
	result := &DetailResult{Detail: detail}

	streams, err := s.GetActivityStreams(ctx, id)
	if err != nil {
		s.log.Warn().Int64("activity_id", id).Err(err).Msg("streams unavailable, caching detail without them")
		result.StreamErr = err
	} else {
		detail.Streams = streams
	}

	if err := s.store.PutDetail(ctx, detail); err != nil {
		return nil, fmt.Errorf("caching detail %d: %w", id, err)
	}
	return result, nil
}

// GetActivityStreams fetches every known stream kind for an activity
func (s *SyncService) GetActivityStreams(ctx context.Context, id int64) (*store.StreamData, error) {
	streams, err := s.api.GetActivityStreams(ctx, id, streamKeys())
	if err != nil {
		return nil, err
	}
	return convertStreams(streams), nil
}

// FetchAllStreamsForSet fetches detail and streams for each activity, one at
// a time in the given order, pausing between requests. Failed items are
// counted and skipped. onProgress, if set, is called after every item.
// Cancelling ctx stops the run between items; the counts so far are returned
// along with ctx.Err().
func (s *SyncService) FetchAllStreamsForSet(ctx context.Context, activities []store.Activity, onProgress func(current, total int)) (BackfillResult, error) {
	var result BackfillResult
	if err := validateSet(activities); err != nil {
		return result, err
	}

	total := len(activities)
	s.log.Info().Int("total", total).Dur("delay", s.delay).Msg("backfill started")

	for i, a := range activities {
		if i > 0 {
			if err := sleep(ctx, s.delay); err != nil {
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := s.GetActivityDetail(ctx, a.ID)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, ItemError{ActivityID: a.ID, Err: err})
			s.log.Warn().Int64("activity_id", a.ID).Err(err).Msg("backfill item failed")
		} else {
			result.SuccessCount++
			if res.StreamsUnavailable() {
				result.StreamsMissing++
			}
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	s.log.Info().
		Int("success", result.SuccessCount).
		Int("errors", result.ErrorCount).
		Int("streams_missing", result.StreamsMissing).
		Msg("backfill finished")
	return result, nil
}

func validateSet(activities []store.Activity) error {
	seen := make(map[int64]struct{}, len(activities))
	for i, a := range activities {
		if a.ID == 0 {
			return fmt.Errorf("%w: item %d has no ID", ErrInvalidSet, i)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: activity %d appears twice", ErrInvalidSet, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetCachedActivities returns every cached activity, newest first
func (s *SyncService) GetCachedActivities(ctx context.Context) ([]store.Activity, error) {
	return s.store.AllActivities(ctx)
}

// ClearActivityCache drops all cached activity summaries
func (s *SyncService) ClearActivityCache(ctx context.Context) error {
	return s.store.ClearActivities(ctx)
}

// ClearDetailCache drops one cached detail, or all of them when id is nil
func (s *SyncService) ClearDetailCache(ctx context.Context, id *int64) error {
	if id == nil {
		return s.store.ClearDetails(ctx)
	}
	return s.store.DeleteDetail(ctx, *id)
}
