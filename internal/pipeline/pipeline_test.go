package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightops-planner/internal/linker"
	"flightops-planner/internal/schedule"
)

const fixtureCSV = `cia;numero_voo;act_type;origem;destino;partida_utc;chegada_utc
AA;100;738;AAA;BBB;2025-06-01T08:00:00Z;2025-06-01T10:00:00Z
AA;101;738;BBB;CCC;2025-06-01T10:40:00Z;2025-06-01T12:40:00Z
`

type fakeFetcher struct {
	text string
	err  error

	calls   int
	seasons []string
}

func (f *fakeFetcher) FetchSchedule(_ context.Context, season string) (string, error) {
	f.calls++
	f.seasons = append(f.seasons, season)
	return f.text, f.err
}

func testParams() Params {
	return Params{
		Season:       "S25",
		ScheduleText: fixtureCSV,
		Linker: linker.Options{
			MinTurnaround: 30 * time.Minute,
			SoloOpen:      3 * time.Hour,
			Granularity:   10 * time.Minute,
		},
	}
}

func TestRunRequiresSeason(t *testing.T) {
	p := testParams()
	p.Season = "   "
	_, err := Run(context.Background(), p)
	require.ErrorIs(t, err, ErrNoSeason)
}

func TestRunUsesFetcherWhenNoText(t *testing.T) {
	f := &fakeFetcher{text: fixtureCSV}
	p := testParams()
	p.Season = "s25"
	p.ScheduleText = ""
	p.Fetcher = f

	res, err := Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, []string{"S25"}, f.seasons)
	assert.Equal(t, "S25", res.Season)
}

func TestRunFetcherError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	p := testParams()
	p.ScheduleText = ""
	p.Fetcher = f

	_, err := Run(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunInfersAirportsSorted(t *testing.T) {
	res, err := Run(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, res.Airports)
}

func TestRunLinksAcrossAirports(t *testing.T) {
	p := testParams()
	p.Airports = []string{"bbb"}

	res, err := Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Flights, 1)

	f := res.Flights[0]
	assert.Equal(t, linker.StatusLinked, f.LinkStatus)
	assert.Equal(t, "BBB", f.Airport)
	assert.Equal(t, "100", f.FlightNumberIn)
	assert.Equal(t, "101", f.FlightNumberOut)
	assert.Equal(t, "S25", f.Season)
	assert.NotEmpty(t, res.Service)
	assert.NotEmpty(t, res.Ground)
	assert.Len(t, res.Events, 2)

	for _, leg := range res.Legs {
		assert.NotEmpty(t, leg.ID)
		assert.Equal(t, "S25", leg.Season)
	}
}

func TestRunWindowFiltering(t *testing.T) {
	p := testParams()
	p.WindowStart = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	p.WindowEnd = time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	_, err := Run(context.Background(), p)
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestRunWindowKeepsSpanningLeg(t *testing.T) {
	p := testParams()
	// The first leg departs 08:00 and arrives 10:00; a window opening mid-air
	// still keeps it.
	p.WindowStart = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	p.WindowEnd = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	res, err := Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Legs, 1)
	assert.Equal(t, "100", res.Legs[0].FlightNumber)
}

func TestRunWindowKeepsLegAirborneThroughout(t *testing.T) {
	p := testParams()
	// The first leg departs 08:00 and arrives 10:00; a window fully inside
	// that flight still counts it as spanning the start boundary.
	p.WindowStart = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	p.WindowEnd = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	res, err := Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Legs, 1)
	assert.Equal(t, "100", res.Legs[0].FlightNumber)
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	first, err := Run(context.Background(), testParams())
	require.NoError(t, err)
	second, err := Run(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunWorkerPoolMatchesSequential(t *testing.T) {
	sequential, err := Run(context.Background(), testParams())
	require.NoError(t, err)

	p := testParams()
	p.Workers = 4
	concurrent, err := Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, sequential, concurrent)
}

func TestRunBadPayload(t *testing.T) {
	p := testParams()
	p.ScheduleText = "cia;numero_voo\nAA;100\n"
	_, err := Run(context.Background(), p)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyResult)
}

func TestFilterWindowEndExclusive(t *testing.T) {
	legs := mustParseFixture(t)
	end := legs[0].DepartureUTC // 08:00
	out := filterWindow(legs, time.Time{}, end)
	assert.Empty(t, out)

	out = filterWindow(legs, time.Time{}, end.Add(time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, "100", out[0].FlightNumber)
}

func mustParseFixture(t *testing.T) []schedule.Leg {
	t.Helper()
	res, err := Run(context.Background(), testParams())
	require.NoError(t, err)
	return res.Legs
}
