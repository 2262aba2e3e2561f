package service

import (
	"math"

	"strava-effort/internal/store"
	"strava-effort/internal/strava"
)

// convertActivity converts a Strava API activity to a store activity
func convertActivity(a strava.Activity) store.Activity {
	activity := store.Activity{
		ID:                 a.ID,
		AthleteID:          a.Athlete.ID,
		Name:               a.Name,
		Type:               a.Type,
		SportType:          a.SportType,
		StartDate:          a.StartDate,
		StartDateLocal:     a.StartDateLocal,
		Timezone:           a.Timezone,
		Distance:           a.Distance,
		MovingTime:         a.MovingTime,
		ElapsedTime:        a.ElapsedTime,
		TotalElevationGain: a.TotalElevationGain,
		AverageSpeed:       a.AverageSpeed,
		MaxSpeed:           a.MaxSpeed,
		AverageHeartrate:   a.AverageHeartrate,
		MaxHeartrate:       a.MaxHeartrate,
		AverageWatts:       a.AverageWatts,
		MaxWatts:           a.MaxWatts,
		AverageCadence:     a.AverageCadence,
		HasHeartrate:       a.HasHeartrate,
	}

	if a.SufferScore != nil {
		score := int(math.Round(*a.SufferScore))
		activity.SufferScore = &score
	}

	return activity
}

// convertDetail converts a detailed API activity; streams are attached separately
func convertDetail(a *strava.DetailedActivity) *store.ActivityDetail {
	return &store.ActivityDetail{
		Activity:    convertActivity(a.Activity),
		Description: a.Description,
		Calories:    a.Calories,
		DeviceName:  a.DeviceName,
	}
}

// convertAthlete converts the API profile; local extensions start empty
func convertAthlete(a *strava.Athlete) *store.Athlete {
	return &store.Athlete{
		ID:         a.ID,
		Username:   a.Username,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		City:       a.City,
		State:      a.State,
		Country:    a.Country,
		Sex:        a.Sex,
		Premium:    a.Premium,
		ProfileURL: a.Profile,
		Weight:     a.Weight,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// convertStreams keeps the known kinds that carry data. Kinds the API left
// out, or returned without samples, stay nil.
func convertStreams(s *strava.Streams) *store.StreamData {
	if s == nil {
		return &store.StreamData{}
	}
	return &store.StreamData{
		Time:           s.Time.Values(),
		Distance:       s.Distance.Values(),
		LatLng:         s.LatLng.Values(),
		Altitude:       s.Altitude.Values(),
		VelocitySmooth: s.VelocitySmooth.Values(),
		Heartrate:      s.Heartrate.Values(),
		Cadence:        s.Cadence.Values(),
		Watts:          s.Watts.Values(),
		Temp:           s.Temp.Values(),
		Moving:         s.Moving.Values(),
		GradeSmooth:    s.GradeSmooth.Values(),
	}
}

// streamKeys lists the kinds to request, in request order
func streamKeys() []string {
	keys := make([]string, len(store.AllStreamKinds))
	for i, k := range store.AllStreamKinds {
		keys[i] = string(k)
	}
	return keys
}
