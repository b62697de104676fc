package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightops-planner/internal/linker"
	"flightops-planner/internal/pipeline"
	"flightops-planner/internal/schedule"
)

func sampleResult() *pipeline.Result {
	arr := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	dep := arr.Add(40 * time.Minute)
	leg := schedule.Leg{
		ID: "leg-1", Season: "S25", Carrier: "AA", FlightNumber: "100",
		AircraftType: "738", Origin: "AAA", Destination: "BBB",
		DepartureUTC: arr.Add(-2 * time.Hour), ArrivalUTC: arr,
		Nature: schedule.NaturePax, Seats: 186,
	}
	return &pipeline.Result{
		Season:   "S25",
		Airports: []string{"BBB"},
		Events: []linker.Event{
			{ID: "ev-1", Kind: linker.KindArrival, Airport: "BBB", Time: arr, Leg: leg},
		},
		Flights: []linker.LinkedFlight{
			{
				ID: "fl-1", Season: "S25", Airport: "BBB", Carrier: "AA",
				AircraftType: "738", AircraftClass: "NARROW",
				ArrivalUTC: arr, ArrivalSlot: arr,
				DepartureUTC: dep, DepartureSlot: dep,
				GroundMinutes: 40, Stay: "TST", DomInt: "DOM",
				LinkStatus: linker.StatusLinked,
				FlightNumberIn: "100", FlightNumberOut: "101",
				Origin: "AAA", Destination: "CCC",
				ArrivalEventID: "ev-1", DepartureEventID: "ev-2",
			},
		},
		Service: []linker.ServiceSlot{
			{FlightID: "fl-1", Slot: arr, Phase: linker.KindArrival, Season: "S25", Airport: "BBB"},
		},
		Ground: []linker.GroundSlot{
			{FlightID: "fl-1", Slot: arr, Season: "S25", Airport: "BBB", PassengerService: true, Cleaning: true},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteResult(dir, sampleResult()))

	events := readCSV(t, filepath.Join(dir, "schedule_events.csv"))
	require.Len(t, events, 2)
	assert.Equal(t, eventHeader, events[0])
	assert.Equal(t, "ev-1", events[1][0])
	assert.Equal(t, "2025-06-01T10:00:00Z", events[1][5])
	assert.Equal(t, "186", events[1][14])

	flights := readCSV(t, filepath.Join(dir, "linked_flights.csv"))
	require.Len(t, flights, 2)
	assert.Equal(t, flightHeader, flights[0])
	assert.Equal(t, "fl-1", flights[1][0])
	assert.Equal(t, "40", flights[1][10])
	assert.Equal(t, "linked", flights[1][13])

	service := readCSV(t, filepath.Join(dir, "service_slots.csv"))
	require.Len(t, service, 2)
	assert.Equal(t, serviceHeader, service[0])
	assert.Equal(t, "ARR", service[1][2])

	ground := readCSV(t, filepath.Join(dir, "ground_slots.csv"))
	require.Len(t, ground, 2)
	assert.Equal(t, groundHeader, ground[0])
	assert.Equal(t, "true", ground[1][8])
	assert.Equal(t, "true", ground[1][9])
}

func TestWriteResultEmptyDatasets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteResult(dir, &pipeline.Result{Season: "S25"}))

	for _, name := range []string{
		"schedule_events.csv", "linked_flights.csv", "service_slots.csv", "ground_slots.csv",
	} {
		rows := readCSV(t, filepath.Join(dir, name))
		assert.Len(t, rows, 1, name) // header only
	}
}

func TestTimestampFormatting(t *testing.T) {
	assert.Equal(t, "", ts(time.Time{}))
	assert.Equal(t, "", seats(0))
	assert.Equal(t, "186", seats(186))
}
