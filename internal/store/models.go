package store

import "time"

// Credentials holds the OAuth client and token state. At most one record exists.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // epoch milliseconds
	Scope        string `json:"scope"`
	AthleteID    int64  `json:"athlete_id"`
}

// Expiry returns ExpiresAt as a time.Time.
func (c *Credentials) Expiry() time.Time {
	return time.UnixMilli(c.ExpiresAt)
}

// Athlete is the cached athlete profile plus the locally owned extensions
// BirthYear and LLMSummaryPrefix.
type Athlete struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	FirstName        string    `json:"firstname"`
	LastName         string    `json:"lastname"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	Country          string    `json:"country"`
	Sex              string    `json:"sex"`
	Premium          bool      `json:"premium"`
	ProfileURL       string    `json:"profile"`
	Weight           float64   `json:"weight"` // kg
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	BirthYear        *int      `json:"birth_year,omitempty"`
	LLMSummaryPrefix string    `json:"llm_summary_prefix"`
}

// Activity represents a Strava activity summary
type Activity struct {
	ID                 int64     `json:"id"`
	AthleteID          int64     `json:"athlete_id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Timezone           string    `json:"timezone"`
	Distance           float64   `json:"distance"`     // meters
	MovingTime         int       `json:"moving_time"`  // seconds
	ElapsedTime        int       `json:"elapsed_time"` // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"`
	AverageSpeed       float64   `json:"average_speed"` // m/s
	MaxSpeed           float64   `json:"max_speed"`     // m/s
	AverageHeartrate   *float64  `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64  `json:"max_heartrate,omitempty"`
	AverageWatts       *float64  `json:"average_watts,omitempty"`
	MaxWatts           *float64  `json:"max_watts,omitempty"`
	AverageCadence     *float64  `json:"average_cadence,omitempty"`
	SufferScore        *int      `json:"suffer_score,omitempty"`
	HasHeartrate       bool      `json:"has_heartrate"`
}

// ActivityDetail is an Activity plus detail-only fields and, once fetched,
// its sensor streams.
type ActivityDetail struct {
	Activity
	Description string      `json:"description"`
	Calories    float64     `json:"calories"`
	DeviceName  string      `json:"device_name"`
	Streams     *StreamData `json:"streams,omitempty"`
}

// Complete reports whether the detail carries its stream bundle. Only a
// complete detail satisfies a cached detail lookup.
func (d *ActivityDetail) Complete() bool {
	return d != nil && d.Streams != nil
}

// StreamKind names one sensor stream.
type StreamKind string

const (
	StreamTime           StreamKind = "time"
	StreamDistance       StreamKind = "distance"
	StreamLatLng         StreamKind = "latlng"
	StreamAltitude       StreamKind = "altitude"
	StreamVelocitySmooth StreamKind = "velocity_smooth"
	StreamHeartrate      StreamKind = "heartrate"
	StreamCadence        StreamKind = "cadence"
	StreamWatts          StreamKind = "watts"
	StreamTemp           StreamKind = "temp"
	StreamMoving         StreamKind = "moving"
	StreamGradeSmooth    StreamKind = "grade_smooth"
)

// AllStreamKinds is the fixed set of kinds requested for every activity.
var AllStreamKinds = []StreamKind{
	StreamTime,
	StreamDistance,
	StreamLatLng,
	StreamAltitude,
	StreamVelocitySmooth,
	StreamHeartrate,
	StreamCadence,
	StreamWatts,
	StreamTemp,
	StreamMoving,
	StreamGradeSmooth,
}

// StreamData holds the sensor streams of one activity. Every slice is
// index-aligned with Time; a nil slice means the device did not report it.
type StreamData struct {
	Time           []int        `json:"time,omitempty"` // seconds from start
	Distance       []float64    `json:"distance,omitempty"`
	LatLng         [][2]float64 `json:"latlng,omitempty"`
	Altitude       []float64    `json:"altitude,omitempty"`
	VelocitySmooth []float64    `json:"velocity_smooth,omitempty"`
	Heartrate      []int        `json:"heartrate,omitempty"`
	Cadence        []int        `json:"cadence,omitempty"`
	Watts          []float64    `json:"watts,omitempty"`
	Temp           []float64    `json:"temp,omitempty"`
	Moving         []bool       `json:"moving,omitempty"`
	GradeSmooth    []float64    `json:"grade_smooth,omitempty"`
}

// Has reports whether the stream of the given kind is present.
func (s *StreamData) Has(kind StreamKind) bool {
	if s == nil {
		return false
	}
	return s.length(kind) > 0
}

// Kinds lists the present streams in AllStreamKinds order.
func (s *StreamData) Kinds() []StreamKind {
	var kinds []StreamKind
	for _, k := range AllStreamKinds {
		if s.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Len returns the number of samples in the time stream.
func (s *StreamData) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Time)
}

func (s *StreamData) length(kind StreamKind) int {
	switch kind {
	case StreamTime:
		return len(s.Time)
	case StreamDistance:
		return len(s.Distance)
	case StreamLatLng:
		return len(s.LatLng)
	case StreamAltitude:
		return len(s.Altitude)
	case StreamVelocitySmooth:
		return len(s.VelocitySmooth)
	case StreamHeartrate:
		return len(s.Heartrate)
	case StreamCadence:
		return len(s.Cadence)
	case StreamWatts:
		return len(s.Watts)
	case StreamTemp:
		return len(s.Temp)
	case StreamMoving:
		return len(s.Moving)
	case StreamGradeSmooth:
		return len(s.GradeSmooth)
	}
	return 0
}
