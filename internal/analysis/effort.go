package analysis

import (
	"math"

	"strava-effort/internal/store"
)

// zoneWeights multiply the time spent in zones 1-5
var zoneWeights = [ZoneCount]int{1, 2, 3, 5, 8}

// Effort is the weighted time-in-zone score of one activity
type Effort struct {
	TotalEffortPoints int
	ClassifiedSeconds int
	ZoneSeconds       [ZoneCount]int
	// RelativeScore is effort points per hour of classified time, rounded.
	RelativeScore int
	// IntensityFactor is points per second divided by 3, to two decimals.
	IntensityFactor float64
}

// RelativeEffort scores an activity from its heart-rate stream. It returns
// nil when the heart-rate stream or birth year is unavailable, or when no
// sample carries a positive heart rate.
func RelativeEffort(detail *store.ActivityDetail, athlete *store.Athlete) *Effort {
	zones := zonesFor(detail, athlete)
	if zones == nil {
		return nil
	}

	samples := classify(detail.Streams, zones)
	if len(samples) == 0 {
		return nil
	}

	var e Effort
	for _, s := range samples {
		e.ZoneSeconds[s.zone-1] += s.seconds
		e.ClassifiedSeconds += s.seconds
		e.TotalEffortPoints += s.seconds * zoneWeights[s.zone-1]
	}
	if e.ClassifiedSeconds == 0 {
		return &e
	}

	perSecond := float64(e.TotalEffortPoints) / float64(e.ClassifiedSeconds)
	e.RelativeScore = int(math.Round(perSecond * 3600))
	e.IntensityFactor = math.Round(perSecond/3*100) / 100
	return &e
}
