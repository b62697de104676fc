// Package export writes the pipeline result datasets as plain CSV files for
// offline inspection.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"flightops-planner/internal/pipeline"
)

// WriteResult writes schedule_events.csv, linked_flights.csv,
// service_slots.csv, and ground_slots.csv into dir, creating it when needed.
func WriteResult(dir string, res *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	files := []struct {
		name   string
		header []string
		rows   func() [][]string
	}{
		{"schedule_events.csv", eventHeader, func() [][]string { return eventRows(res) }},
		{"linked_flights.csv", flightHeader, func() [][]string { return flightRows(res) }},
		{"service_slots.csv", serviceHeader, func() [][]string { return serviceRows(res) }},
		{"ground_slots.csv", groundHeader, func() [][]string { return groundRows(res) }},
	}
	for _, f := range files {
		if err := writeCSV(filepath.Join(dir, f.name), f.header, f.rows()); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

var eventHeader = []string{
	"event_id", "leg_id", "season", "operating_airport", "event_kind", "event_time",
	"carrier", "flight_number", "aircraft_type", "origin", "destination",
	"departure_utc", "arrival_utc", "nature", "seats",
}

func eventRows(res *pipeline.Result) [][]string {
	rows := make([][]string, 0, len(res.Events))
	for _, e := range res.Events {
		rows = append(rows, []string{
			e.ID, e.Leg.ID, e.Leg.Season, e.Airport, e.Kind, ts(e.Time),
			e.Leg.Carrier, e.Leg.FlightNumber, e.Leg.AircraftType, e.Leg.Origin, e.Leg.Destination,
			ts(e.Leg.DepartureUTC), ts(e.Leg.ArrivalUTC), e.Leg.Nature, seats(e.Leg.Seats),
		})
	}
	return rows
}

var flightHeader = []string{
	"flight_id", "season", "airport", "carrier", "aircraft_type", "aircraft_class",
	"arrival_utc", "arrival_slot", "departure_utc", "departure_slot",
	"ground_minutes", "stay_class", "dom_int", "link_status",
	"flight_number_in", "flight_number_out", "origin", "destination",
	"arrival_event_id", "departure_event_id",
}

func flightRows(res *pipeline.Result) [][]string {
	rows := make([][]string, 0, len(res.Flights))
	for _, f := range res.Flights {
		rows = append(rows, []string{
			f.ID, f.Season, f.Airport, f.Carrier, f.AircraftType, f.AircraftClass,
			ts(f.ArrivalUTC), ts(f.ArrivalSlot), ts(f.DepartureUTC), ts(f.DepartureSlot),
			strconv.FormatFloat(f.GroundMinutes, 'f', -1, 64), f.Stay, f.DomInt, f.LinkStatus,
			f.FlightNumberIn, f.FlightNumberOut, f.Origin, f.Destination,
			f.ArrivalEventID, f.DepartureEventID,
		})
	}
	return rows
}

var serviceHeader = []string{
	"flight_id", "slot_ts", "phase", "season", "airport", "carrier",
	"aircraft_class", "dom_int", "stay_class", "flight_number",
}

func serviceRows(res *pipeline.Result) [][]string {
	rows := make([][]string, 0, len(res.Service))
	for _, s := range res.Service {
		rows = append(rows, []string{
			s.FlightID, ts(s.Slot), s.Phase, s.Season, s.Airport, s.Carrier,
			s.AircraftClass, s.DomInt, s.Stay, s.FlightNumber,
		})
	}
	return rows
}

var groundHeader = []string{
	"flight_id", "slot_ts", "season", "airport", "carrier",
	"aircraft_class", "dom_int", "stay_class", "passenger_service", "cleaning",
}

func groundRows(res *pipeline.Result) [][]string {
	rows := make([][]string, 0, len(res.Ground))
	for _, g := range res.Ground {
		rows = append(rows, []string{
			g.FlightID, ts(g.Slot), g.Season, g.Airport, g.Carrier,
			g.AircraftClass, g.DomInt, g.Stay,
			strconv.FormatBool(g.PassengerService), strconv.FormatBool(g.Cleaning),
		})
	}
	return rows
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func seats(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
