package renfe

import "time"

// Station identifies an endpoint in the operator's own station coding
// scheme, which is distinct from any public stop registry. Two
// stations are the same iff their codes match.
type Station struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Ride is one train in a scrape result. DurationMinutes is taken
// verbatim from the server: for multi-leg results it includes
// connection time the two instants alone do not reflect.
type Ride struct {
	TrainType       string
	Origin          string
	Destination     string
	Departure       time.Time
	Arrival         time.Time
	DurationMinutes int
	Price           float64
	Available       bool
}
