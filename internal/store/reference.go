package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// AirportCountries loads the airport code -> country mapping used by the
// domestic/international classification. Both IATA and ICAO codes are keyed.
// A missing or empty reference table is not an error; classification then
// falls back to its heuristic.
func AirportCountries(ctx context.Context, db *sql.DB) (map[string]string, error) {
	q := `SELECT COALESCE(iata, ''), COALESCE(icao, ''), COALESCE(country, '') FROM airports_ref WHERE country IS NOT NULL AND country <> ''`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query airports_ref: %w", err)
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var iata, icao, country string
		if err := rows.Scan(&iata, &icao, &country); err != nil {
			return nil, err
		}
		for _, code := range []string{iata, icao} {
			code = strings.ToUpper(strings.TrimSpace(code))
			if code != "" {
				mapping[code] = country
			}
		}
	}
	return mapping, rows.Err()
}

// referenceColumns maps the OurAirports-style CSV headers onto table columns.
var referenceColumns = map[string]string{
	"airport":   "name",
	"city":      "city",
	"country":   "country",
	"iata":      "iata",
	"icao":      "icao",
	"latitude":  "latitude",
	"longitude": "longitude",
	"altitude":  "altitude",
	"timezone":  "timezone",
	"tz":        "tz",
}

// LoadAirportsCSV upserts the airport reference table from a local CSV file.
// Rows without an IATA or ICAO code are skipped; duplicates keep the first
// occurrence.
func LoadAirportsCSV(ctx context.Context, db *sql.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open airports csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read airports csv: %w", err)
	}
	if len(records) < 2 {
		return 0, fmt.Errorf("airports csv has no data rows")
	}

	index := make(map[string]int)
	for i, h := range records[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cell := func(row []string, header string) string {
		col, ok := index[header]
		if !ok || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	cols := []string{"code", "name", "city", "country", "iata", "icao", "latitude", "longitude", "altitude", "timezone", "tz"}
	seen := make(map[string]bool)
	var rows [][]any
	for _, rec := range records[1:] {
		iata := strings.ToUpper(cell(rec, "iata"))
		icao := strings.ToUpper(cell(rec, "icao"))
		code := iata
		if code == "" || code == "NAN" || code == "NONE" {
			code = icao
		}
		if code == "" || code == "NAN" || code == "NONE" || seen[code] {
			continue
		}
		seen[code] = true
		rows = append(rows, []any{
			code,
			cell(rec, "airport"),
			cell(rec, "city"),
			cell(rec, "country"),
			nullStr(iata),
			nullStr(icao),
			nullFloat(cell(rec, "latitude")),
			nullFloat(cell(rec, "longitude")),
			nullRoundedInt(cell(rec, "altitude")),
			cell(rec, "timezone"),
			cell(rec, "tz"),
		})
	}

	if err := upsertChunked(ctx, db, "airports_ref", cols, []string{"code"}, rows, 1000); err != nil {
		return 0, err
	}
	log.Printf("loaded %d airports into airports_ref", len(rows))
	return len(rows), nil
}

func nullFloat(s string) any {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return f
}

func nullRoundedInt(s string) any {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
