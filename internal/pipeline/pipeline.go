// Package pipeline orchestrates a planning run: fetch the schedule, parse it,
// window and identify the legs, and fan linking out across airports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"flightops-planner/internal/linker"
	"flightops-planner/internal/schedule"
)

var (
	// ErrNoSeason means no season code could be resolved for the run.
	ErrNoSeason = errors.New("no season resolved")
	// ErrEmptyResult means no legs or airports survived filtering; callers
	// can tell "nothing scheduled this period" apart from a bad payload.
	ErrEmptyResult = errors.New("empty result")
)

// Fetcher retrieves the raw schedule text for a season.
type Fetcher interface {
	FetchSchedule(ctx context.Context, season string) (string, error)
}

// Params configures one pipeline run.
type Params struct {
	Season       string
	Airports     []string  // explicit set; empty means every airport in the feed
	ScheduleText string    // bypasses the fetcher when non-empty
	WindowStart  time.Time // optional UTC half-open window [start, end)
	WindowEnd    time.Time
	Countries    map[string]string // airport code -> country, may be nil
	Fetcher      Fetcher
	Linker       linker.Options
	Workers      int // airports linked concurrently; <= 1 runs sequentially
}

// Result aggregates the per-airport outputs of one run.
type Result struct {
	Season   string
	Airports []string
	Legs     []schedule.Leg
	Events   []linker.Event
	Flights  []linker.LinkedFlight
	Service  []linker.ServiceSlot
	Ground   []linker.GroundSlot
}

// Run executes the pipeline. Outputs, identifiers included, are bit-identical
// across runs over the same input and configuration.
func Run(ctx context.Context, p Params) (*Result, error) {
	season := strings.ToUpper(strings.TrimSpace(p.Season))
	if season == "" {
		return nil, fmt.Errorf("%w: provide a season code (e.g. S25)", ErrNoSeason)
	}

	text := p.ScheduleText
	if text == "" {
		if p.Fetcher == nil {
			return nil, fmt.Errorf("no schedule text and no fetcher configured")
		}
		var err error
		text, err = p.Fetcher.FetchSchedule(ctx, season)
		if err != nil {
			return nil, fmt.Errorf("fetch schedule: %w", err)
		}
	}

	legs, err := schedule.Parse(text)
	if err != nil {
		return nil, err
	}
	for i := range legs {
		if legs[i].Season == "" {
			legs[i].Season = season
		}
	}

	legs = filterWindow(legs, p.WindowStart, p.WindowEnd)
	if len(legs) == 0 {
		return nil, fmt.Errorf("%w: no flight legs inside the requested window", ErrEmptyResult)
	}
	assignLegIDs(legs, season)

	airports := normalizeAirports(p.Airports)
	if len(airports) == 0 {
		airports = inferAirports(legs)
	}
	if len(airports) == 0 {
		return nil, fmt.Errorf("%w: no airports to process", ErrEmptyResult)
	}

	results := linkAirports(legs, airports, season, p)

	out := &Result{Season: season, Airports: airports, Legs: legs}
	for _, r := range results {
		out.Events = append(out.Events, r.Events...)
		out.Flights = append(out.Flights, r.Flights...)
		out.Service = append(out.Service, r.Service...)
		out.Ground = append(out.Ground, r.Ground...)
	}
	return out, nil
}

// linkAirports runs the linker once per airport. Airports are independent, so
// with Workers > 1 they are processed concurrently; results are collected by
// index to keep the concatenation order deterministic.
func linkAirports(legs []schedule.Leg, airports []string, season string, p Params) []linker.Result {
	results := make([]linker.Result, len(airports))
	workers := p.Workers
	if workers <= 1 {
		for i, airport := range airports {
			results[i] = linker.Link(legs, airport, season, p.Linker, p.Countries)
		}
		return results
	}

	if workers > len(airports) {
		workers = len(airports)
	}
	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				results[i] = linker.Link(legs, airports[i], season, p.Linker, p.Countries)
			}
		}()
	}
	for i := range airports {
		idx <- i
	}
	close(idx)
	wg.Wait()
	return results
}

// filterWindow keeps legs with either endpoint inside [start, end), plus legs
// spanning across the window start (departed before it, arriving at or after
// it).
func filterWindow(legs []schedule.Leg, start, end time.Time) []schedule.Leg {
	if start.IsZero() && end.IsZero() {
		return legs
	}

	inside := func(t time.Time) bool {
		if t.IsZero() {
			return false
		}
		if !start.IsZero() && t.Before(start) {
			return false
		}
		if !end.IsZero() && !t.Before(end) {
			return false
		}
		return true
	}

	out := legs[:0:0]
	for _, leg := range legs {
		keep := inside(leg.ArrivalUTC) || inside(leg.DepartureUTC)
		if !keep && !start.IsZero() && !leg.DepartureUTC.IsZero() && !leg.ArrivalUTC.IsZero() {
			// Airborne across the window start counts, even when the leg only
			// lands after the window has closed.
			keep = leg.DepartureUTC.Before(start) && !leg.ArrivalUTC.Before(start)
		}
		if keep {
			out = append(out, leg)
		}
	}
	return out
}

// assignLegIDs derives a deterministic identifier per leg from the stable
// composite key (season, carrier, number, origin, destination, ordinal).
func assignLegIDs(legs []schedule.Leg, season string) {
	for i := range legs {
		key := strings.Join([]string{
			season,
			legs[i].Carrier,
			legs[i].FlightNumber,
			legs[i].Origin,
			legs[i].Destination,
			strconv.Itoa(i),
		}, ":")
		legs[i].ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
	}
}

func normalizeAirports(airports []string) []string {
	var out []string
	for _, a := range airports {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// inferAirports returns the sorted union of every origin and destination.
func inferAirports(legs []schedule.Leg) []string {
	set := make(map[string]bool)
	for _, leg := range legs {
		if leg.Origin != "" {
			set[leg.Origin] = true
		}
		if leg.Destination != "" {
			set[leg.Destination] = true
		}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
