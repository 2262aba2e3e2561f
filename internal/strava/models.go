package strava

import "time"

// Activity is a summary activity as returned by /athlete/activities
type Activity struct {
	ID                 int64     `json:"id"`
	Athlete            MetaRef   `json:"athlete"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Timezone           string    `json:"timezone"`
	Distance           float64   `json:"distance"`             // meters
	MovingTime         int       `json:"moving_time"`          // seconds
	ElapsedTime        int       `json:"elapsed_time"`         // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"` // meters
	AverageSpeed       float64   `json:"average_speed"`        // m/s
	MaxSpeed           float64   `json:"max_speed"`            // m/s
	AverageHeartrate   *float64  `json:"average_heartrate"`    // bpm
	MaxHeartrate       *float64  `json:"max_heartrate"`        // bpm
	AverageWatts       *float64  `json:"average_watts"`
	MaxWatts           *float64  `json:"max_watts"`
	AverageCadence     *float64  `json:"average_cadence"` // rpm or spm
	SufferScore        *float64  `json:"suffer_score"`
	HasHeartrate       bool      `json:"has_heartrate"`
}

// DetailedActivity is returned by /activities/{id}
type DetailedActivity struct {
	Activity
	Description string  `json:"description"`
	Calories    float64 `json:"calories"`
	DeviceName  string  `json:"device_name"`
}

// MetaRef is the minimal athlete reference embedded in activities
type MetaRef struct {
	ID int64 `json:"id"`
}

// Athlete is the authenticated athlete's profile from /athlete
type Athlete struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstname"`
	LastName  string    `json:"lastname"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Country   string    `json:"country"`
	Sex       string    `json:"sex"`
	Premium   bool      `json:"premium"`
	Profile   string    `json:"profile"`
	Weight    float64   `json:"weight"` // kg
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Streams represents activity stream data from the API.
// Strava returns streams keyed by type when key_by_type=true; kinds the
// device did not record are absent.
type Streams struct {
	Time           *Stream[int]        `json:"time"`
	Distance       *Stream[float64]    `json:"distance"`
	LatLng         *Stream[[2]float64] `json:"latlng"`
	Altitude       *Stream[float64]    `json:"altitude"`
	VelocitySmooth *Stream[float64]    `json:"velocity_smooth"`
	Heartrate      *Stream[int]        `json:"heartrate"`
	Cadence        *Stream[int]        `json:"cadence"`
	Watts          *Stream[float64]    `json:"watts"`
	Temp           *Stream[float64]    `json:"temp"`
	Moving         *Stream[bool]       `json:"moving"`
	GradeSmooth    *Stream[float64]    `json:"grade_smooth"`
}

// Stream represents a single stream type
type Stream[T any] struct {
	Data         []T    `json:"data"`
	SeriesType   string `json:"series_type"`
	OriginalSize int    `json:"original_size"`
	Resolution   string `json:"resolution"`
}

// Values returns the samples, or nil when the stream is absent.
func (s *Stream[T]) Values() []T {
	if s == nil || len(s.Data) == 0 {
		return nil
	}
	return s.Data
}
