// Package store persists pipeline results into the Postgres reporting
// database and serves the airport reference data used for classification.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"flightops-planner/internal/pipeline"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// EnsureSchema creates the result and reference tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schedule_events (
			event_id TEXT PRIMARY KEY,
			leg_id TEXT,
			season TEXT,
			operating_airport TEXT,
			event_kind TEXT,
			event_time TIMESTAMPTZ,
			carrier TEXT,
			flight_number TEXT,
			aircraft_type TEXT,
			origin TEXT,
			destination TEXT,
			departure_utc TIMESTAMPTZ,
			arrival_utc TIMESTAMPTZ,
			nature TEXT,
			seats INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS linked_flights (
			flight_id TEXT PRIMARY KEY,
			season TEXT,
			airport TEXT,
			carrier TEXT,
			aircraft_type TEXT,
			aircraft_class TEXT,
			arrival_utc TIMESTAMPTZ,
			arrival_slot TIMESTAMPTZ,
			departure_utc TIMESTAMPTZ,
			departure_slot TIMESTAMPTZ,
			ground_minutes DOUBLE PRECISION,
			stay_class TEXT,
			dom_int TEXT,
			link_status TEXT,
			flight_number_in TEXT,
			flight_number_out TEXT,
			origin TEXT,
			destination TEXT,
			arrival_event_id TEXT,
			departure_event_id TEXT,
			arrival_leg_id TEXT,
			departure_leg_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS service_slots (
			flight_id TEXT,
			slot_ts TIMESTAMPTZ,
			phase TEXT,
			season TEXT,
			airport TEXT,
			carrier TEXT,
			aircraft_class TEXT,
			dom_int TEXT,
			stay_class TEXT,
			flight_number TEXT,
			PRIMARY KEY (flight_id, slot_ts, phase)
		)`,
		`CREATE TABLE IF NOT EXISTS ground_slots (
			flight_id TEXT,
			slot_ts TIMESTAMPTZ,
			season TEXT,
			airport TEXT,
			carrier TEXT,
			aircraft_class TEXT,
			dom_int TEXT,
			stay_class TEXT,
			passenger_service BOOLEAN,
			cleaning BOOLEAN,
			PRIMARY KEY (flight_id, slot_ts)
		)`,
		`CREATE TABLE IF NOT EXISTS airports_ref (
			code TEXT PRIMARY KEY,
			name TEXT,
			city TEXT,
			country TEXT,
			iata TEXT,
			icao TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			altitude INTEGER,
			timezone TEXT,
			tz TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveMetrics receives per-table row counts after an upsert.
type SaveMetrics interface {
	RowsUpserted(table string, n int)
}

// SaveResult upserts the four result datasets in chunked batches.
func SaveResult(ctx context.Context, db *sql.DB, res *pipeline.Result, m SaveMetrics) error {
	saves := []struct {
		table    string
		cols     []string
		conflict []string
		rows     [][]any
	}{
		{"schedule_events", eventCols, []string{"event_id"}, eventRows(res)},
		{"linked_flights", flightCols, []string{"flight_id"}, flightRows(res)},
		{"service_slots", serviceCols, []string{"flight_id", "slot_ts", "phase"}, serviceRows(res)},
		{"ground_slots", groundCols, []string{"flight_id", "slot_ts"}, groundRows(res)},
	}
	for _, s := range saves {
		if err := upsertChunked(ctx, db, s.table, s.cols, s.conflict, s.rows, 500); err != nil {
			return err
		}
		if m != nil {
			m.RowsUpserted(s.table, len(s.rows))
		}
	}
	return nil
}

// ReplaceSeason deletes previously stored rows for the season, limited to the
// given airports when the list is non-empty.
func ReplaceSeason(ctx context.Context, db *sql.DB, season string, airports []string) error {
	targets := []struct{ table, airportCol string }{
		{"service_slots", "airport"},
		{"ground_slots", "airport"},
		{"linked_flights", "airport"},
		{"schedule_events", "operating_airport"},
	}
	for _, t := range targets {
		var err error
		if len(airports) > 0 {
			q := fmt.Sprintf("DELETE FROM %s WHERE season = $1 AND %s = ANY($2)", t.table, t.airportCol)
			_, err = db.ExecContext(ctx, q, season, airports)
		} else {
			q := fmt.Sprintf("DELETE FROM %s WHERE season = $1", t.table)
			_, err = db.ExecContext(ctx, q, season)
		}
		if err != nil {
			return fmt.Errorf("replace %s: %w", t.table, err)
		}
	}
	return nil
}

var eventCols = []string{
	"event_id", "leg_id", "season", "operating_airport", "event_kind", "event_time",
	"carrier", "flight_number", "aircraft_type", "origin", "destination",
	"departure_utc", "arrival_utc", "nature", "seats",
}

func eventRows(res *pipeline.Result) [][]any {
	rows := make([][]any, 0, len(res.Events))
	for _, e := range res.Events {
		rows = append(rows, []any{
			e.ID, e.Leg.ID, e.Leg.Season, e.Airport, e.Kind, nullTime(e.Time),
			e.Leg.Carrier, e.Leg.FlightNumber, e.Leg.AircraftType, e.Leg.Origin, e.Leg.Destination,
			nullTime(e.Leg.DepartureUTC), nullTime(e.Leg.ArrivalUTC), e.Leg.Nature, nullInt(e.Leg.Seats),
		})
	}
	return rows
}

var flightCols = []string{
	"flight_id", "season", "airport", "carrier", "aircraft_type", "aircraft_class",
	"arrival_utc", "arrival_slot", "departure_utc", "departure_slot",
	"ground_minutes", "stay_class", "dom_int", "link_status",
	"flight_number_in", "flight_number_out", "origin", "destination",
	"arrival_event_id", "departure_event_id", "arrival_leg_id", "departure_leg_id",
}

func flightRows(res *pipeline.Result) [][]any {
	rows := make([][]any, 0, len(res.Flights))
	for _, f := range res.Flights {
		rows = append(rows, []any{
			f.ID, f.Season, f.Airport, f.Carrier, f.AircraftType, f.AircraftClass,
			nullTime(f.ArrivalUTC), nullTime(f.ArrivalSlot), nullTime(f.DepartureUTC), nullTime(f.DepartureSlot),
			f.GroundMinutes, f.Stay, f.DomInt, f.LinkStatus,
			f.FlightNumberIn, nullStr(f.FlightNumberOut), f.Origin, f.Destination,
			f.ArrivalEventID, nullStr(f.DepartureEventID), f.ArrivalLegID, nullStr(f.DepartureLegID),
		})
	}
	return rows
}

var serviceCols = []string{
	"flight_id", "slot_ts", "phase", "season", "airport", "carrier",
	"aircraft_class", "dom_int", "stay_class", "flight_number",
}

func serviceRows(res *pipeline.Result) [][]any {
	rows := make([][]any, 0, len(res.Service))
	for _, s := range res.Service {
		rows = append(rows, []any{
			s.FlightID, s.Slot, s.Phase, s.Season, s.Airport, s.Carrier,
			s.AircraftClass, s.DomInt, s.Stay, s.FlightNumber,
		})
	}
	return rows
}

var groundCols = []string{
	"flight_id", "slot_ts", "season", "airport", "carrier",
	"aircraft_class", "dom_int", "stay_class", "passenger_service", "cleaning",
}

func groundRows(res *pipeline.Result) [][]any {
	rows := make([][]any, 0, len(res.Ground))
	for _, g := range res.Ground {
		rows = append(rows, []any{
			g.FlightID, g.Slot, g.Season, g.Airport, g.Carrier,
			g.AircraftClass, g.DomInt, g.Stay, g.PassengerService, g.Cleaning,
		})
	}
	return rows
}

// upsertChunked emits INSERT ... ON CONFLICT DO UPDATE statements in batches.
func upsertChunked(ctx context.Context, db *sql.DB, table string, cols, conflict []string, rows [][]any, chunkSize int) error {
	if len(rows) == 0 {
		return nil
	}

	conflictSet := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		conflictSet[c] = true
	}
	var updates []string
	for _, c := range cols {
		if !conflictSet[c] {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}

	for from := 0; from < len(rows); from += chunkSize {
		to := from + chunkSize
		if to > len(rows) {
			to = len(rows)
		}
		chunk := rows[from:to]

		var sb strings.Builder
		fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))
		args := make([]any, 0, len(chunk)*len(cols))
		for i, row := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			for j := range cols {
				if j > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "$%d", len(args)+1)
				args = append(args, row[j])
			}
			sb.WriteByte(')')
		}
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(updates, ", "))

		if _, err := db.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("upsert %s: %w", table, err)
		}
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
