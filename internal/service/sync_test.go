package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"strava-effort/internal/analysis"
	"strava-effort/internal/apperr"
	"strava-effort/internal/store"
	"strava-effort/internal/strava"
)

// fakeAPI serves canned Strava responses and records calls
type fakeAPI struct {
	mu         sync.Mutex
	athlete    *strava.Athlete
	pages      map[int][]strava.Activity
	details    map[int64]*strava.DetailedActivity
	streams    map[int64]*strava.Streams
	detailErr  map[int64]error
	streamErr  map[int64]error
	detailHits map[int64]int
	streamKeys []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		pages:      map[int][]strava.Activity{},
		details:    map[int64]*strava.DetailedActivity{},
		streams:    map[int64]*strava.Streams{},
		detailErr:  map[int64]error{},
		streamErr:  map[int64]error{},
		detailHits: map[int64]int{},
	}
}

func (f *fakeAPI) GetAthlete(context.Context) (*strava.Athlete, error) {
	if f.athlete == nil {
		return nil, &apperr.NetworkError{Op: "fetching athlete", StatusCode: 404}
	}
	a := *f.athlete
	return &a, nil
}

func (f *fakeAPI) GetActivities(_ context.Context, page, _ int) ([]strava.Activity, error) {
	return f.pages[page], nil
}

func (f *fakeAPI) GetActivity(_ context.Context, id int64) (*strava.DetailedActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailHits[id]++
	if err := f.detailErr[id]; err != nil {
		return nil, err
	}
	d, ok := f.details[id]
	if !ok {
		return nil, &apperr.NetworkError{Op: "fetching activity", StatusCode: 404, Body: "Record Not Found"}
	}
	return d, nil
}

func (f *fakeAPI) GetActivityStreams(_ context.Context, id int64, kinds []string) (*strava.Streams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamKeys = kinds
	if err := f.streamErr[id]; err != nil {
		return nil, err
	}
	if s, ok := f.streams[id]; ok {
		return s, nil
	}
	return &strava.Streams{}, nil
}

func (f *fakeAPI) addActivity(id int64, date string, hr []int) {
	start, _ := time.Parse(time.RFC3339, date)
	f.details[id] = &strava.DetailedActivity{
		Activity:    strava.Activity{ID: id, Name: "Run", Type: "Run", StartDate: start, StartDateLocal: start, HasHeartrate: hr != nil},
		Description: "desc",
	}
	if hr != nil {
		times := make([]int, len(hr))
		for i := range times {
			times[i] = i
		}
		f.streams[id] = &strava.Streams{
			Time:      &strava.Stream[int]{Data: times},
			Heartrate: &strava.Stream[int]{Data: hr},
		}
	}
}

type fakeSession struct {
	authed    bool
	forgets   int
	loggedOut bool
}

func (f *fakeSession) HasCredentials(context.Context) bool { return f.authed }
func (f *fakeSession) Logout(context.Context) error {
	f.loggedOut = true
	f.authed = false
	return nil
}
func (f *fakeSession) Forget() { f.forgets++ }

func newTestService(t *testing.T) (*SyncService, *fakeAPI, *fakeSession, *store.Store) {
	t.Helper()
	api := newFakeAPI()
	session := &fakeSession{authed: true}
	st := store.NewTestStore(t)
	svc := NewSyncService(api, session, st, Options{BackfillDelay: -1, Logger: zerolog.Nop()})
	return svc, api, session, st
}

func activities(ids ...int64) []store.Activity {
	out := make([]store.Activity, len(ids))
	for i, id := range ids {
		out[i] = store.Activity{ID: id}
	}
	return out
}

func TestListActivitiesAuthenticated(t *testing.T) {
	ctx := context.Background()
	svc, api, _, st := newTestService(t)

	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	score := 41.6
	api.pages[1] = []strava.Activity{
		{ID: 1, Name: "A", StartDate: start, StartDateLocal: start, SufferScore: &score},
		{ID: 2, Name: "B", StartDate: start.Add(-time.Hour), StartDateLocal: start.Add(-time.Hour)},
	}

	got, err := svc.ListActivities(ctx, 1, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 42, *got[0].SufferScore)

	n, err := st.CountActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestListActivitiesFromCacheWhenSignedOut(t *testing.T) {
	ctx := context.Background()
	svc, api, session, st := newTestService(t)
	session.authed = false

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var cached []store.Activity
	for i := 1; i <= 5; i++ {
		d := base.AddDate(0, 0, i)
		cached = append(cached, store.Activity{ID: int64(i), StartDate: d, StartDateLocal: d})
	}
	require.NoError(t, st.UpsertActivities(ctx, cached))
	api.pages[1] = []strava.Activity{{ID: 99}}

	page, err := svc.ListActivities(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, []int64{3, 2}, []int64{page[0].ID, page[1].ID})
}

func TestGetActivityDetailCachesComplete(t *testing.T) {
	ctx := context.Background()
	svc, api, _, _ := newTestService(t)
	api.addActivity(7, "2024-02-01T08:00:00Z", []int{120, 130, 140})

	res, err := svc.GetActivityDetail(ctx, 7)
	require.NoError(t, err)
	require.False(t, res.FromCache)
	require.False(t, res.StreamsUnavailable())
	require.True(t, res.Detail.Complete())
	require.Equal(t, []int{120, 130, 140}, res.Detail.Streams.Heartrate)
	require.Len(t, api.streamKeys, len(store.AllStreamKinds))

	res, err = svc.GetActivityDetail(ctx, 7)
	require.NoError(t, err)
	require.True(t, res.FromCache)
	require.Equal(t, 1, api.detailHits[7])
}

func TestGetActivityDetailStreamFailureDegrades(t *testing.T) {
	ctx := context.Background()
	svc, api, _, st := newTestService(t)
	api.addActivity(8, "2024-02-01T08:00:00Z", []int{120})
	api.streamErr[8] = &apperr.NetworkError{Op: "fetching streams", StatusCode: 500}

	res, err := svc.GetActivityDetail(ctx, 8)
	require.NoError(t, err)
	require.True(t, res.StreamsUnavailable())
	require.Nil(t, res.Detail.Streams)

	cached, err := st.GetDetail(ctx, 8)
	require.NoError(t, err)
	require.False(t, cached.Complete())

	// Partial detail does not satisfy the next request
	delete(api.streamErr, 8)
	res, err = svc.GetActivityDetail(ctx, 8)
	require.NoError(t, err)
	require.False(t, res.FromCache)
	require.True(t, res.Detail.Complete())
	require.Equal(t, 2, api.detailHits[8])
}

func TestGetActivityStreamsDropsEmptyKinds(t *testing.T) {
	svc, api, _, _ := newTestService(t)
	api.streams[3] = &strava.Streams{
		Time:     &strava.Stream[int]{Data: []int{0, 1}},
		Watts:    &strava.Stream[float64]{Data: nil},
		Altitude: &strava.Stream[float64]{Data: []float64{10, 11}},
	}

	sd, err := svc.GetActivityStreams(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, []store.StreamKind{store.StreamTime, store.StreamAltitude}, sd.Kinds())
	require.False(t, sd.Has(store.StreamWatts))
}

func TestFetchAllStreamsForSetPartialFailure(t *testing.T) {
	ctx := context.Background()
	svc, api, _, _ := newTestService(t)
	for id := int64(1); id <= 5; id++ {
		api.addActivity(id, "2024-02-01T08:00:00Z", []int{100})
	}
	api.detailErr[3] = &apperr.NetworkError{Op: "fetching activity 3", StatusCode: 500}

	var progress [][2]int
	res, err := svc.FetchAllStreamsForSet(ctx, activities(1, 2, 3, 4, 5), func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})
	require.NoError(t, err)
	require.Equal(t, 4, res.SuccessCount)
	require.Equal(t, 1, res.ErrorCount)
	require.Len(t, res.Errors, 1)
	require.Equal(t, int64(3), res.Errors[0].ActivityID)
	require.Equal(t, [][2]int{{1, 5}, {2, 5}, {3, 5}, {4, 5}, {5, 5}}, progress)
}

func TestFetchAllStreamsForSetCountsMissingStreams(t *testing.T) {
	svc, api, _, _ := newTestService(t)
	api.addActivity(1, "2024-02-01T08:00:00Z", []int{100})
	api.addActivity(2, "2024-02-01T08:00:00Z", []int{100})
	api.streamErr[2] = errors.New("boom")

	res, err := svc.FetchAllStreamsForSet(context.Background(), activities(1, 2), nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, 1, res.StreamsMissing)
}

func TestFetchAllStreamsForSetRejectsInvalidSet(t *testing.T) {
	svc, api, _, _ := newTestService(t)

	for name, set := range map[string][]store.Activity{
		"duplicate": activities(1, 2, 1),
		"zero id":   activities(1, 0),
	} {
		t.Run(name, func(t *testing.T) {
			calls := 0
			_, err := svc.FetchAllStreamsForSet(context.Background(), set, func(int, int) { calls++ })
			require.ErrorIs(t, err, ErrInvalidSet)
			require.Zero(t, calls)
		})
	}
	require.Empty(t, api.detailHits)
}

func TestFetchAllStreamsForSetCancellation(t *testing.T) {
	api := newFakeAPI()
	for id := int64(1); id <= 4; id++ {
		api.addActivity(id, "2024-02-01T08:00:00Z", []int{100})
	}
	svc := NewSyncService(api, &fakeSession{authed: true}, store.NewTestStore(t), Options{
		BackfillDelay: 20 * time.Millisecond,
		Logger:        zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := svc.FetchAllStreamsForSet(ctx, activities(1, 2, 3, 4), func(current, _ int) {
		if current == 2 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, res.SuccessCount)
	require.Zero(t, api.detailHits[3])
}

func TestFetchAllStreamsForSetDelay(t *testing.T) {
	api := newFakeAPI()
	for id := int64(1); id <= 3; id++ {
		api.addActivity(id, "2024-02-01T08:00:00Z", nil)
	}
	svc := NewSyncService(api, &fakeSession{authed: true}, store.NewTestStore(t), Options{
		BackfillDelay: 30 * time.Millisecond,
		Logger:        zerolog.Nop(),
	})

	start := time.Now()
	res, err := svc.FetchAllStreamsForSet(context.Background(), activities(1, 2, 3), nil)
	require.NoError(t, err)
	require.Equal(t, 3, res.SuccessCount)
	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRefreshAthletePreservesLocalFields(t *testing.T) {
	ctx := context.Background()
	svc, api, _, st := newTestService(t)
	api.athlete = &strava.Athlete{ID: 5, FirstName: "Ada"}

	_, err := svc.RefreshAthlete(ctx, false)
	require.NoError(t, err)

	year := 1990
	require.NoError(t, svc.UpdateAthleteSettings(ctx, &year, "Be brief."))

	api.athlete.FirstName = "Augusta"
	got, err := svc.RefreshAthlete(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "Augusta", got.FirstName)
	require.Equal(t, 1990, *got.BirthYear)
	require.Equal(t, "Be brief.", got.LLMSummaryPrefix)

	got, err = svc.RefreshAthlete(ctx, false)
	require.NoError(t, err)
	require.Nil(t, got.BirthYear)

	n, err := st.CountAthletes(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	bad := 1800
	require.Error(t, svc.UpdateAthleteSettings(ctx, &bad, ""))
}

func TestCompareCohortSingleMember(t *testing.T) {
	ctx := context.Background()
	svc, api, _, st := newTestService(t)
	api.athlete = &strava.Athlete{ID: 5}
	_, err := svc.RefreshAthlete(ctx, false)
	require.NoError(t, err)
	year := 1990
	require.NoError(t, svc.UpdateAthleteSettings(ctx, &year, ""))

	api.addActivity(1, "2024-03-10T08:00:00Z", []int{140, 150, 160})
	api.addActivity(2, "2024-04-10T08:00:00Z", []int{140, 150, 160})
	require.NoError(t, st.UpsertActivities(ctx, []store.Activity{
		convertActivity(api.details[1].Activity),
		convertActivity(api.details[2].Activity),
	}))

	cmp, err := svc.CompareCohort(ctx, 1, analysis.PeriodMonth)
	require.NoError(t, err)
	require.NotNil(t, cmp)
	require.Len(t, cmp.Entries, 1)
	require.Nil(t, cmp.Percentile)
	require.Zero(t, api.detailHits[2])

	cmp, err = svc.CompareCohort(ctx, 1, analysis.PeriodYear)
	require.NoError(t, err)
	require.Equal(t, 2, cmp.Total)
	require.NotNil(t, cmp.Percentile)

	effort, err := svc.RelativeEffort(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, effort)

	dist, err := svc.ZoneDistribution(ctx, 1)
	require.NoError(t, err)
	require.NotEmpty(t, dist)
}

func TestImportAndResetForgetSession(t *testing.T) {
	ctx := context.Background()
	svc, api, session, st := newTestService(t)
	api.addActivity(1, "2024-03-10T08:00:00Z", nil)
	_, err := svc.GetActivityDetail(ctx, 1)
	require.NoError(t, err)

	data, err := svc.Export(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Reset(ctx))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Counts[store.TableActivityDetails])

	require.NoError(t, svc.Import(ctx, data))
	_, err = st.GetDetail(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, session.forgets)

	require.NoError(t, svc.ClearDetailCache(ctx, nil))
	_, err = st.GetDetail(ctx, 1)
	require.ErrorIs(t, err, store.ErrDetailNotFound)

	require.NoError(t, svc.Logout(ctx))
	require.True(t, session.loggedOut)
}
