// Package linker pairs arrivals with onward departures of the same aircraft
// at one airport and expands the linked flights into service and
// ground-occupancy slot grids. The whole pass is a pure, deterministic
// transformation: identical legs and options yield identical output,
// identifiers included.
package linker

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"flightops-planner/internal/classify"
	"flightops-planner/internal/schedule"
	"flightops-planner/internal/slot"
)

// Event kinds and link statuses.
const (
	KindArrival   = "ARR"
	KindDeparture = "DEP"

	StatusLinked      = "linked"
	StatusNoDeparture = "no_departure"
)

// maxTurnaround is the ceiling on how far ahead a departure may be matched.
const maxTurnaround = 36 * time.Hour

// Service window extents around the arrival and departure events.
const (
	arrivalWindowBefore   = 10 * time.Minute
	arrivalWindowAfter    = 30 * time.Minute
	departureWindowBefore = 30 * time.Minute
	departureWindowAfter  = 10 * time.Minute
	cleaningWindowBefore  = 10 * time.Minute
	cleaningWindowAfter   = 10 * time.Minute

	// fullCoverageTolerance is the slack allowed when deciding whether the
	// service windows jointly cover the whole ground stay.
	fullCoverageTolerance = time.Minute
)

// Options carries the configuration surface of a linking run.
type Options struct {
	MinTurnaround time.Duration // minimum ground time to accept a match
	SoloOpen      time.Duration // occupancy horizon for unmatched arrivals
	Granularity   time.Duration // slot width
}

// Event is a leg viewed from one airport, either its arrival or departure.
type Event struct {
	ID      string
	Kind    string
	Airport string
	Time    time.Time
	Leg     schedule.Leg
}

// LinkedFlight is an arrival paired with at most one departure.
type LinkedFlight struct {
	ID               string
	Season           string
	Airport          string
	Carrier          string
	AircraftType     string
	AircraftClass    string
	ArrivalUTC       time.Time
	ArrivalSlot      time.Time
	DepartureUTC     time.Time // zero when no departure was linked
	DepartureSlot    time.Time
	GroundMinutes    float64
	Stay             string // PNT or TST
	DomInt           string
	LinkStatus       string
	FlightNumberIn   string
	FlightNumberOut  string // empty when unlinked
	Origin           string
	Destination      string
	ArrivalEventID   string
	DepartureEventID string // empty when unlinked
	ArrivalLegID     string
	DepartureLegID   string
}

// ServiceSlot is one fixed-width bucket of ground-service engagement for one
// phase of a flight.
type ServiceSlot struct {
	FlightID      string
	Slot          time.Time
	Phase         string // ARR or DEP
	Season        string
	Airport       string
	Carrier       string
	AircraftClass string
	DomInt        string
	Stay          string
	FlightNumber  string
}

// GroundSlot is one bucket of aircraft ground occupancy between arrival and
// departure (or the open horizon when unlinked).
type GroundSlot struct {
	FlightID         string
	Slot             time.Time
	Season           string
	Airport          string
	Carrier          string
	AircraftClass    string
	DomInt           string
	Stay             string
	PassengerService bool
	Cleaning         bool
}

// Result is the output of one per-airport linking pass.
type Result struct {
	Airport string
	Flights []LinkedFlight
	Service []ServiceSlot
	Ground  []GroundSlot
	Events  []Event // raw arrival+departure subset, tagged with the airport
}

// Link pairs each arrival at the airport with the most plausible onward
// departure of the same carrier and aircraft type, then expands slot tables.
func Link(legs []schedule.Leg, airport, season string, opts Options, countries map[string]string) Result {
	airport = strings.ToUpper(strings.TrimSpace(airport))
	arrivals, departures := prepareEvents(legs, airport)
	lookup := buildDepartureLookup(departures)

	res := Result{Airport: airport}
	consumed := make(map[string]bool) // departure event ids already paired

	for _, arrival := range arrivals {
		cand := pickDeparture(arrival, lookup[fleetKey(arrival.Leg)], consumed, opts)

		linked := cand != nil
		var depTime time.Time
		destination := arrival.Leg.Destination
		flightNumberOut := ""
		departureEventID := ""
		departureLegID := ""
		if linked {
			consumed[cand.ID] = true
			depTime = cand.Time
			destination = cand.Leg.Destination
			flightNumberOut = cand.Leg.FlightNumber
			departureEventID = cand.ID
			departureLegID = cand.Leg.ID
		}

		arrivalSlot := slot.Round(arrival.Time, opts.Granularity)
		var departureSlot time.Time
		var groundMinutes float64
		if linked {
			departureSlot = slot.Round(depTime, opts.Granularity)
			groundMinutes = depTime.Sub(arrival.Time).Minutes()
		} else {
			groundMinutes = opts.SoloOpen.Minutes()
		}

		class := classify.Aircraft(
			arrival.Leg.AircraftType,
			arrival.Leg.Nature == schedule.NatureCargo,
			arrival.Leg.Carrier,
			arrival.Leg.ServiceType,
			arrival.Leg.Seats,
		)
		domInt := classify.Flight(arrival.Leg.Origin, destination, countries)
		stay := classify.Operation(groundMinutes, true)
		fid := flightID(season, airport, arrival.ID, departureEventID)

		status := StatusNoDeparture
		if linked {
			status = StatusLinked
		}
		res.Flights = append(res.Flights, LinkedFlight{
			ID:               fid,
			Season:           season,
			Airport:          airport,
			Carrier:          arrival.Leg.Carrier,
			AircraftType:     arrival.Leg.AircraftType,
			AircraftClass:    class,
			ArrivalUTC:       arrival.Time,
			ArrivalSlot:      arrivalSlot,
			DepartureUTC:     depTime,
			DepartureSlot:    departureSlot,
			GroundMinutes:    groundMinutes,
			Stay:             stay,
			DomInt:           domInt,
			LinkStatus:       status,
			FlightNumberIn:   arrival.Leg.FlightNumber,
			FlightNumberOut:  flightNumberOut,
			Origin:           arrival.Leg.Origin,
			Destination:      destination,
			ArrivalEventID:   arrival.ID,
			DepartureEventID: departureEventID,
			ArrivalLegID:     arrival.Leg.ID,
			DepartureLegID:   departureLegID,
		})

		appendSlot := func(ts time.Time, phase, number string) {
			res.Service = append(res.Service, ServiceSlot{
				FlightID:      fid,
				Slot:          ts,
				Phase:         phase,
				Season:        season,
				Airport:       airport,
				Carrier:       arrival.Leg.Carrier,
				AircraftClass: class,
				DomInt:        domInt,
				Stay:          stay,
				FlightNumber:  number,
			})
		}
		for _, ts := range slot.Expand(arrivalSlot, arrivalWindowBefore, arrivalWindowAfter, opts.Granularity) {
			appendSlot(ts, KindArrival, arrival.Leg.FlightNumber)
		}
		if linked {
			for _, ts := range slot.Expand(departureSlot, departureWindowBefore, departureWindowAfter, opts.Granularity) {
				appendSlot(ts, KindDeparture, flightNumberOut)
			}
		}

		res.Ground = append(res.Ground, groundSlots(groundSlotInput{
			flightID:      fid,
			season:        season,
			airport:       airport,
			carrier:       arrival.Leg.Carrier,
			class:         class,
			domInt:        domInt,
			stay:          stay,
			arrivalTime:   arrival.Time,
			arrivalSlot:   arrivalSlot,
			departureTime: depTime,
			departureSlot: departureSlot,
			opts:          opts,
		})...)
	}

	res.Events = append(res.Events, arrivals...)
	res.Events = append(res.Events, departures...)
	return res
}

// prepareEvents derives arrival and departure events for the airport, drops
// events with an unknown timestamp, and sorts each set by time.
func prepareEvents(legs []schedule.Leg, airport string) (arrivals, departures []Event) {
	for _, leg := range legs {
		if leg.Destination == airport && !leg.ArrivalUTC.IsZero() {
			arrivals = append(arrivals, Event{
				ID:      eventID(leg.ID, KindArrival, airport),
				Kind:    KindArrival,
				Airport: airport,
				Time:    leg.ArrivalUTC,
				Leg:     leg,
			})
		}
		if leg.Origin == airport && !leg.DepartureUTC.IsZero() {
			departures = append(departures, Event{
				ID:      eventID(leg.ID, KindDeparture, airport),
				Kind:    KindDeparture,
				Airport: airport,
				Time:    leg.DepartureUTC,
				Leg:     leg,
			})
		}
	}
	sort.SliceStable(arrivals, func(i, j int) bool { return arrivals[i].Time.Before(arrivals[j].Time) })
	sort.SliceStable(departures, func(i, j int) bool { return departures[i].Time.Before(departures[j].Time) })
	return arrivals, departures
}

type fleet struct {
	carrier      string
	aircraftType string
}

func fleetKey(leg schedule.Leg) fleet {
	return fleet{carrier: leg.Carrier, aircraftType: leg.AircraftType}
}

// buildDepartureLookup buckets departures by (carrier, aircraft type); the
// input is already time-sorted so each bucket stays sorted.
func buildDepartureLookup(departures []Event) map[fleet][]*Event {
	lookup := make(map[fleet][]*Event)
	for i := range departures {
		key := fleetKey(departures[i].Leg)
		lookup[key] = append(lookup[key], &departures[i])
	}
	return lookup
}

// pickDeparture scans the time-sorted candidates for the one closest in time
// inside the turnaround window, breaking exact ties on the smallest numeric
// flight-number difference. Candidates past the ceiling stop the scan.
func pickDeparture(arrival Event, candidates []*Event, consumed map[string]bool, opts Options) *Event {
	earliest := arrival.Time.Add(opts.MinTurnaround)
	latest := arrival.Time.Add(maxTurnaround)

	var best *Event
	var bestDiff time.Duration
	bestNumberDelta := -1

	for _, cand := range candidates {
		if consumed[cand.ID] {
			continue
		}
		if cand.Time.Before(earliest) {
			continue
		}
		if cand.Time.After(latest) {
			break
		}
		diff := cand.Time.Sub(arrival.Time)
		numberDelta := flightNumberDelta(arrival.Leg.FlightNumber, cand.Leg.FlightNumber)

		better := false
		switch {
		case best == nil || diff < bestDiff:
			better = true
		case diff == bestDiff && numberDelta >= 0 && (bestNumberDelta < 0 || numberDelta < bestNumberDelta):
			better = true
		}
		if better {
			best = cand
			bestDiff = diff
			bestNumberDelta = numberDelta
		}
	}
	return best
}

// flightNumberDelta returns the absolute numeric difference between two
// flight numbers, or -1 when either is not numeric (the tie-break then does
// not apply; never an error).
func flightNumberDelta(a, b string) int {
	na, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return -1
	}
	nb, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return -1
	}
	d := na - nb
	if d < 0 {
		d = -d
	}
	return d
}

type groundSlotInput struct {
	flightID      string
	season        string
	airport       string
	carrier       string
	class         string
	domInt        string
	stay          string
	arrivalTime   time.Time
	arrivalSlot   time.Time
	departureTime time.Time // zero when unlinked
	departureSlot time.Time
	opts          Options
}

// window is a half-open interval [start, end).
type window struct {
	start time.Time
	end   time.Time
}

func (w window) valid() bool {
	return !w.start.IsZero() && !w.end.IsZero() && w.end.After(w.start)
}

// overlaps reports whether the slot [t, t+g) intersects the window.
func (w window) overlaps(t time.Time, g time.Duration) bool {
	if !w.valid() {
		return false
	}
	return t.Before(w.end) && t.Add(g).After(w.start)
}

// clippedLen is the length of the window clipped to [lo, hi].
func (w window) clippedLen(lo, hi time.Time) time.Duration {
	if !w.valid() {
		return 0
	}
	start, end := w.start, w.end
	if start.Before(lo) {
		start = lo
	}
	if end.After(hi) {
		end = hi
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// groundSlots expands the occupancy range between the arrival slot and the
// departure slot (or the rounded open horizon) and flags each slot for
// passenger service and cleaning activity.
func groundSlots(in groundSlotInput) []GroundSlot {
	linked := !in.departureTime.IsZero()

	soloEnd := in.departureSlot
	groundEnd := in.departureTime
	if !linked {
		groundEnd = in.arrivalTime.Add(in.opts.SoloOpen)
		soloEnd = slot.Round(groundEnd, in.opts.Granularity)
	}

	arrWindow := window{in.arrivalTime.Add(-arrivalWindowBefore), in.arrivalTime.Add(arrivalWindowAfter)}
	cleanWindow := window{in.arrivalTime.Add(-cleaningWindowBefore), in.arrivalTime.Add(cleaningWindowAfter)}
	var depWindow window
	if linked {
		depWindow = window{in.departureTime.Add(-departureWindowBefore), in.departureTime.Add(departureWindowAfter)}
	}

	// Full-attendance shortcut: when the service windows, clipped to the
	// actual ground stay, jointly cover its whole duration the aircraft is
	// treated as continuously serviced. This can mark slots active beyond the
	// plain per-window overlap checks.
	groundDuration := groundEnd.Sub(in.arrivalTime)
	covered := arrWindow.clippedLen(in.arrivalTime, groundEnd) + depWindow.clippedLen(in.arrivalTime, groundEnd)
	if arrWindow.valid() && depWindow.valid() {
		overlapStart := maxTime(arrWindow.start, depWindow.start)
		overlapEnd := minTime(arrWindow.end, depWindow.end)
		covered -= window{overlapStart, overlapEnd}.clippedLen(in.arrivalTime, groundEnd)
	}
	fullyServiced := covered >= groundDuration-fullCoverageTolerance

	var out []GroundSlot
	for _, ts := range slot.Range(in.arrivalSlot, soloEnd, in.opts.Granularity) {
		out = append(out, GroundSlot{
			FlightID:      in.flightID,
			Slot:          ts,
			Season:        in.season,
			Airport:       in.airport,
			Carrier:       in.carrier,
			AircraftClass: in.class,
			DomInt:        in.domInt,
			Stay:          in.stay,
			PassengerService: fullyServiced ||
				arrWindow.overlaps(ts, in.opts.Granularity) ||
				depWindow.overlaps(ts, in.opts.Granularity),
			Cleaning: cleanWindow.overlaps(ts, in.opts.Granularity),
		})
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// eventID derives the deterministic event identifier from the leg id, event
// kind, and airport.
func eventID(legID, kind, airport string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(legID+":"+kind+":"+airport)).String()
}

// flightID derives the deterministic flight identifier; unlinked flights use
// the "na" sentinel in place of a departure event id.
func flightID(season, airport, arrivalEventID, departureEventID string) string {
	if departureEventID == "" {
		departureEventID = "na"
	}
	key := season + ":" + airport + ":" + arrivalEventID + ":" + departureEventID
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
