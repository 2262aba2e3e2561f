package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"strava-effort/internal/apperr"
)

func ptr[T any](v T) *T { return &v }

func testActivity(id int64, local string) Activity {
	start, _ := time.Parse(time.RFC3339, local)
	return Activity{
		ID:               id,
		AthleteID:        123,
		Name:             "Run",
		Type:             "Run",
		SportType:        "Run",
		StartDate:        start,
		StartDateLocal:   start,
		Timezone:         "(GMT+00:00) Europe/London",
		Distance:         5000,
		MovingTime:       1500,
		ElapsedTime:      1600,
		AverageSpeed:     3.3,
		AverageHeartrate: ptr(150.5),
		HasHeartrate:     true,
	}
}

func testAthlete(id int64) *Athlete {
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	return &Athlete{
		ID:        id,
		Username:  "runner",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Premium:   true,
		Weight:    60,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestCredentialsLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)

	_, err := s.GetCredentials(ctx)
	require.ErrorIs(t, err, ErrNoCredentials)

	err = s.UpdateTokens(ctx, "a", "r", 1)
	require.ErrorIs(t, err, ErrNoCredentials)

	creds := &Credentials{ClientID: "id", ClientSecret: "secret", AccessToken: "a1", RefreshToken: "r1", ExpiresAt: 1000, Scope: "read"}
	require.NoError(t, s.SaveCredentials(ctx, creds))
	require.NoError(t, s.UpdateTokens(ctx, "a2", "r2", 2000))

	got, err := s.GetCredentials(ctx)
	require.NoError(t, err)
	require.Equal(t, "id", got.ClientID)
	require.Equal(t, "a2", got.AccessToken)
	require.Equal(t, "r2", got.RefreshToken)
	require.Equal(t, int64(2000), got.ExpiresAt)

	list, err := s.ListCredentials(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteCredentials(ctx))
	list, err = s.ListCredentials(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestActivityUpsertAndOrder(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)

	require.NoError(t, s.UpsertActivities(ctx, []Activity{
		testActivity(1, "2024-01-10T08:00:00Z"),
		testActivity(2, "2024-03-01T08:00:00Z"),
		testActivity(3, "2024-02-01T08:00:00Z"),
	}))

	// Last write wins
	a := testActivity(1, "2024-01-10T08:00:00Z")
	a.Name = "Renamed"
	a.AverageHeartrate = nil
	require.NoError(t, s.UpsertActivity(ctx, &a))

	got, err := s.GetActivity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Name)
	require.Nil(t, got.AverageHeartrate)

	all, err := s.AllActivities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []int64{2, 3, 1}, []int64{all[0].ID, all[1].ID, all[2].ID})

	page, err := s.ListActivities(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, int64(3), page[0].ID)

	n, err := s.CountActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestActivityRoundTripFields(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)

	a := testActivity(7, "2024-05-05T06:30:00Z")
	a.SufferScore = ptr(42)
	a.MaxWatts = ptr(310.0)
	require.NoError(t, s.UpsertActivity(ctx, &a))

	got, err := s.GetActivity(ctx, 7)
	require.NoError(t, err)
	require.True(t, got.StartDateLocal.Equal(a.StartDateLocal))
	require.Equal(t, 150.5, *got.AverageHeartrate)
	require.Equal(t, 42, *got.SufferScore)
	require.Equal(t, 310.0, *got.MaxWatts)
	require.Nil(t, got.AverageCadence)
	require.True(t, got.HasHeartrate)
}

func TestActivityNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)

	_, err := s.GetActivity(ctx, 99)
	require.ErrorIs(t, err, ErrActivityNotFound)

	a := testActivity(99, "2024-01-01T00:00:00Z")
	require.ErrorIs(t, s.UpdateActivity(ctx, &a), ErrActivityNotFound)

	require.NoError(t, s.UpsertActivity(ctx, &a))
	a.Name = "Updated"
	require.NoError(t, s.UpdateActivity(ctx, &a))

	require.NoError(t, s.DeleteActivity(ctx, 99))
	_, err = s.GetActivity(ctx, 99)
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestPutAthleteKeepsOne(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)

	_, err := s.GetAthlete(ctx)
	require.ErrorIs(t, err, ErrAthleteNotFound)

	require.NoError(t, s.PutAthlete(ctx, testAthlete(1)))
	require.NoError(t, s.PutAthlete(ctx, testAthlete(2)))

	n, err := s.CountAthletes(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := s.GetAthlete(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.ID)
	require.True(t, got.Premium)
	require.Nil(t, got.BirthYear)

	require.NoError(t, s.UpdateAthleteLocalFields(ctx, 2, ptr(1990), "prefix"))
	got, err = s.GetAthleteByID(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1990, *got.BirthYear)
	require.Equal(t, "prefix", got.LLMSummaryPrefix)

	require.ErrorIs(t, s.UpdateAthleteLocalFields(ctx, 1, nil, ""), ErrAthleteNotFound)

	// Putting the same athlete again updates in place and keeps local fields it carries.
	got.Weight = 61
	require.NoError(t, s.PutAthlete(ctx, got))
	got, err = s.GetAthlete(ctx)
	require.NoError(t, err)
	require.Equal(t, 61.0, got.Weight)
	require.Equal(t, 1990, *got.BirthYear)

	require.NoError(t, s.DeleteAthlete(ctx, 2))
	_, err = s.GetAthlete(ctx)
	require.ErrorIs(t, err, ErrAthleteNotFound)
	require.NoError(t, s.DeleteAthlete(ctx, 2))
}

func TestDetailCompleteness(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)

	_, err := s.GetDetail(ctx, 5)
	require.ErrorIs(t, err, ErrDetailNotFound)

	d := &ActivityDetail{Activity: testActivity(5, "2024-01-01T00:00:00Z"), Description: "easy", Calories: 300}
	require.NoError(t, s.PutDetail(ctx, d))

	got, err := s.GetDetail(ctx, 5)
	require.NoError(t, err)
	require.False(t, got.Complete())
	require.Equal(t, "easy", got.Description)
	require.Equal(t, int64(5), got.ID)

	d.Streams = &StreamData{Time: []int{0, 1, 2}, Heartrate: []int{100, 110, 120}, LatLng: [][2]float64{{1, 2}, {1, 2}, {1, 3}}}
	require.NoError(t, s.UpdateDetail(ctx, d))

	got, err = s.GetDetail(ctx, 5)
	require.NoError(t, err)
	require.True(t, got.Complete())
	require.Equal(t, []int{100, 110, 120}, got.Streams.Heartrate)
	require.Equal(t, []StreamKind{StreamTime, StreamLatLng, StreamHeartrate}, got.Streams.Kinds())
	require.False(t, got.Streams.Has(StreamWatts))

	require.ErrorIs(t, s.UpdateDetail(ctx, &ActivityDetail{Activity: Activity{ID: 6}}), ErrDetailNotFound)
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.SaveCredentials(ctx, &Credentials{ClientID: "id", ClientSecret: "secret", AccessToken: "a", RefreshToken: "r", ExpiresAt: 1700000000000, Scope: "read,activity:read_all", AthleteID: 1}))
	ath := testAthlete(1)
	ath.BirthYear = ptr(1985)
	require.NoError(t, s.PutAthlete(ctx, ath))
	require.NoError(t, s.UpsertActivities(ctx, []Activity{
		testActivity(10, "2024-01-10T08:00:00Z"),
		testActivity(11, "2024-01-11T08:00:00Z"),
	}))
	require.NoError(t, s.PutDetail(ctx, &ActivityDetail{
		Activity: testActivity(10, "2024-01-10T08:00:00Z"),
		Streams:  &StreamData{Time: []int{0, 5}, Heartrate: []int{120, 130}},
	}))
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewTestStore(t)
	seed(t, src)

	data, err := src.ExportJSON(ctx)
	require.NoError(t, err)

	dst := NewTestStore(t)
	require.NoError(t, dst.UpsertActivity(ctx, &Activity{ID: 999, StartDate: time.Now(), StartDateLocal: time.Now()}))
	require.NoError(t, dst.ImportJSON(ctx, data))

	srcSnap, err := src.ExportAll(ctx)
	require.NoError(t, err)
	dstSnap, err := dst.ExportAll(ctx)
	require.NoError(t, err)

	require.Equal(t, srcSnap.Settings, dstSnap.Settings)
	require.ElementsMatch(t, srcSnap.Activities, dstSnap.Activities)
	require.ElementsMatch(t, srcSnap.ActivityDetails, dstSnap.ActivityDetails)
	require.Equal(t, srcSnap.Athlete, dstSnap.Athlete)

	_, err = dst.GetActivity(ctx, 999)
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestImportRejectsMissingVersion(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)
	seed(t, s)

	err := s.ImportJSON(ctx, []byte(`{"timestamp":"2024-01-01T00:00:00Z","activities":[]}`))
	require.Error(t, err)
	require.True(t, apperr.IsData(err))

	// Cache untouched
	n, err := s.CountActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	_, err = s.GetCredentials(ctx)
	require.NoError(t, err)
}

func TestImportValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `{"version":`},
		{"missing timestamp", `{"version":1}`},
		{"bad timestamp", `{"version":1,"timestamp":"yesterday"}`},
		{"future version", `{"version":99,"timestamp":"2024-01-01T00:00:00Z"}`},
		{"zero version", `{"version":0,"timestamp":"2024-01-01T00:00:00Z"}`},
		{"two settings", `{"version":1,"timestamp":"2024-01-01T00:00:00Z","settings":[{},{}]}`},
		{"two athletes", `{"version":1,"timestamp":"2024-01-01T00:00:00Z","athlete":[{"id":1},{"id":2}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTestStore(t)
			err := s.ImportJSON(context.Background(), []byte(tt.doc))
			require.True(t, apperr.IsData(err), "want DataError, got %v", err)
		})
	}
}

func TestImportRollsBackOnInsertFailure(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)
	seed(t, s)

	bad := testActivity(20, "2024-02-01T08:00:00Z")
	bad.Distance = math.NaN()
	snap := &Snapshot{
		Version:         SnapshotVersion,
		Timestamp:       "2024-02-02T00:00:00Z",
		Activities:      []Activity{testActivity(21, "2024-02-01T09:00:00Z")},
		ActivityDetails: []ActivityDetail{{Activity: bad}},
	}
	require.Error(t, s.ImportAll(ctx, snap))

	// Every table still holds the pre-import rows.
	n, err := s.CountActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	_, err = s.GetActivity(ctx, 10)
	require.NoError(t, err)
	_, err = s.GetActivity(ctx, 21)
	require.ErrorIs(t, err, ErrActivityNotFound)
	_, err = s.GetCredentials(ctx)
	require.NoError(t, err)
	ath, err := s.GetAthlete(ctx)
	require.NoError(t, err)
	require.Equal(t, 1985, *ath.BirthYear)
	d, err := s.GetDetail(ctx, 10)
	require.NoError(t, err)
	require.True(t, d.Complete())
}

func TestImportMissingTablesAreEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)
	seed(t, s)

	require.NoError(t, s.ImportJSON(ctx, []byte(`{"version":1,"timestamp":"2024-01-01T00:00:00Z","activities":[]}`)))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	for _, table := range Tables {
		require.Zero(t, st.Counts[table], table)
	}
}

func TestStatsAndReset(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)
	seed(t, s)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.Counts[TableSettings])
	require.Equal(t, 1, st.Counts[TableAthlete])
	require.Equal(t, 2, st.Counts[TableActivities])
	require.Equal(t, 1, st.Counts[TableActivityDetails])
	require.Positive(t, st.ApproxSizeBytes)

	require.NoError(t, s.ResetAll(ctx))

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, st.Counts[TableActivities])

	// Schema is usable again after a reset
	a := testActivity(1, "2024-01-01T00:00:00Z")
	require.NoError(t, s.UpsertActivity(ctx, &a))
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)
	seed(t, s)

	require.NoError(t, s.ClearAll(ctx))
	for _, table := range Tables {
		n, err := s.Count(ctx, table)
		require.NoError(t, err)
		require.Zero(t, n, table)
	}

	_, err := s.Count(ctx, "sqlite_master")
	require.Error(t, err)
}
