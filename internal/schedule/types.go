package schedule

import "time"

// Flight nature values carried on a leg.
const (
	NatureCargo = "CARGO"
	NaturePax   = "PAX"
)

// Leg is one scheduled flight operation on one calendar day. Timestamps are
// UTC; a zero time means the feed did not provide a usable value.
type Leg struct {
	ID               string // assigned by the pipeline, stable across runs
	Season           string
	Carrier          string
	FlightNumber     string
	AircraftType     string
	ServiceType      string
	Origin           string
	Destination      string
	OperatingAirport string
	DepartureUTC     time.Time
	ArrivalUTC       time.Time
	Nature           string // CARGO, PAX, or empty when unknown
	Seats            int    // 0 when unknown
}
