package analysis

import (
	"time"

	"strava-effort/internal/store"
)

// ZoneCount is the number of heart-rate zones
const ZoneCount = 5

// zoneUpperFractions are the upper bounds of zones 1-5 as a fraction of max HR
var zoneUpperFractions = [ZoneCount]float64{0.6, 0.7, 0.8, 0.9, 1.0}

// finalSampleSeconds is charged to the last sample, which has no successor to
// bound it.
const finalSampleSeconds = 1

// now is replaced in tests
var now = time.Now

// Zone is one heart-rate band. Lower is exclusive except for zone 1.
type Zone struct {
	Number int
	Lower  float64
	Upper  float64
}

// MaxHeartRate estimates max HR from birth year using the current year.
func MaxHeartRate(birthYear int) float64 {
	return MaxHeartRateAt(birthYear, now().Year())
}

// MaxHeartRateAt estimates max HR as 220 minus age in the given year.
func MaxHeartRateAt(birthYear, year int) float64 {
	return float64(220 - (year - birthYear))
}

// ZoneThresholds returns the five contiguous zones for maxHR.
func ZoneThresholds(maxHR float64) []Zone {
	zones := make([]Zone, ZoneCount)
	lower := 0.0
	for i, frac := range zoneUpperFractions {
		upper := frac * maxHR
		if i == ZoneCount-1 {
			upper = maxHR
		}
		zones[i] = Zone{Number: i + 1, Lower: lower, Upper: upper}
		lower = upper
	}
	return zones
}

// ZoneFor returns the 1-based zone for hr: the lowest zone whose upper bound
// is at least hr. Values above max HR fall in the top zone; hr <= 0 is not
// classified and returns 0.
func ZoneFor(zones []Zone, hr float64) int {
	if hr <= 0 || len(zones) == 0 {
		return 0
	}
	for _, z := range zones {
		if hr <= z.Upper {
			return z.Number
		}
	}
	return zones[len(zones)-1].Number
}

// ZoneTime is the time spent in one zone
type ZoneTime struct {
	Zone    int
	Seconds int
	Minutes float64
	Percent float64 // share of all classified time
}

// zoneSample is one classified heart-rate sample and the time charged to it
type zoneSample struct {
	zone    int
	seconds int
}

// classify walks the heart-rate stream and charges each positive sample the
// gap to the next time sample, or finalSampleSeconds for the last one.
func classify(streams *store.StreamData, zones []Zone) []zoneSample {
	hr := streams.Heartrate
	ts := streams.Time
	samples := make([]zoneSample, 0, len(hr))

	for i, h := range hr {
		zone := ZoneFor(zones, float64(h))
		if zone == 0 {
			continue
		}
		seconds := finalSampleSeconds
		if i+1 < len(ts) {
			seconds = max(ts[i+1]-ts[i], 0)
		}
		samples = append(samples, zoneSample{zone: zone, seconds: seconds})
	}
	return samples
}

// zonesFor returns the athlete's zones, or nil when the inputs needed to
// classify the detail are missing.
func zonesFor(detail *store.ActivityDetail, athlete *store.Athlete) []Zone {
	if detail == nil || athlete == nil || athlete.BirthYear == nil {
		return nil
	}
	if !detail.Streams.Has(store.StreamHeartrate) {
		return nil
	}
	return ZoneThresholds(MaxHeartRate(*athlete.BirthYear))
}

// ZoneTimeDistribution returns time spent per zone, in zone order, omitting
// empty zones. It returns nil when the heart-rate stream or birth year is
// unavailable.
func ZoneTimeDistribution(detail *store.ActivityDetail, athlete *store.Athlete) []ZoneTime {
	zones := zonesFor(detail, athlete)
	if zones == nil {
		return nil
	}

	var perZone [ZoneCount]int
	total := 0
	for _, s := range classify(detail.Streams, zones) {
		perZone[s.zone-1] += s.seconds
		total += s.seconds
	}

	dist := []ZoneTime{}
	for i, secs := range perZone {
		if secs == 0 {
			continue
		}
		dist = append(dist, ZoneTime{
			Zone:    i + 1,
			Seconds: secs,
			Minutes: float64(secs) / 60,
			Percent: float64(secs) / float64(total) * 100,
		})
	}
	return dist
}
