package schedule

import (
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrFormat marks payloads that cannot be interpreted as a schedule file.
var ErrFormat = errors.New("unparseable schedule payload")

const ssimHeader = "1AIRLINE STANDARD SCHEDULE DATA SET"

// cargoServiceTypes are the SSIM service type codes that mark a cargo leg.
var cargoServiceTypes = map[string]bool{"F": true, "M": true}

// Parse normalises raw schedule text into a flat list of dated flight legs.
// The payload is either an SSIM fixed-field file or a delimited table with
// varying header names; the variant is detected from the first content.
func Parse(raw string) ([]Leg, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrFormat)
	}

	if looksLikeSSIM(text) {
		legs := parseSSIM(text)
		if len(legs) == 0 {
			return nil, fmt.Errorf("%w: SSIM file contains no usable flight records", ErrFormat)
		}
		return legs, nil
	}

	return parseTabular(text)
}

func looksLikeSSIM(text string) bool {
	head := strings.TrimLeft(text, " \t\r\n")
	if len(head) > 40 {
		head = head[:40]
	}
	return strings.HasPrefix(strings.ToUpper(head), ssimHeader)
}

// ---------------------------------------------------------------------------
// SSIM fixed-field format
// ---------------------------------------------------------------------------

// ssimRecord is one type-3 leg record before date expansion.
type ssimRecord struct {
	carrier      string
	flightNumber string
	serviceType  string
	startDate    time.Time
	endDate      time.Time
	days         map[int]bool // ISO weekday 1..7; empty means every day
	origin       string
	destination  string
	depMinutes   int // departure time as minutes from midnight UTC
	arrMinutes   int
	equipment    string
}

func parseSSIM(text string) []Leg {
	var legs []Leg
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "3 ") {
			continue
		}
		rec, ok := parseSSIMLine(line)
		if !ok {
			continue
		}
		legs = append(legs, expandSSIMRecord(rec)...)
	}
	return legs
}

func parseSSIMLine(line string) (ssimRecord, bool) {
	if len(line) < 75 {
		return ssimRecord{}, false
	}

	rec := ssimRecord{
		carrier:      field(line, 2, 4),
		flightNumber: field(line, 5, 9),
		serviceType:  field(line, 13, 14),
		origin:       field(line, 36, 39),
		destination:  field(line, 54, 57),
		equipment:    field(line, 72, 75),
	}
	if rec.carrier == "" || rec.flightNumber == "" || rec.origin == "" || rec.destination == "" {
		return ssimRecord{}, false
	}

	var ok bool
	if rec.depMinutes, ok = parseHHMM(line[43:47]); !ok {
		return ssimRecord{}, false
	}
	if rec.arrMinutes, ok = parseHHMM(line[61:65]); !ok {
		return ssimRecord{}, false
	}
	if rec.startDate, ok = parseSSIMDate(line[14:21]); !ok {
		return ssimRecord{}, false
	}
	if rec.endDate, ok = parseSSIMDate(line[21:28]); !ok {
		return ssimRecord{}, false
	}

	rec.days = make(map[int]bool)
	for _, ch := range line[28:35] {
		if ch >= '1' && ch <= '7' {
			rec.days[int(ch-'0')] = true
		}
	}
	return rec, true
}

// expandSSIMRecord emits one leg per calendar day inside the operating period
// that matches the days-of-week mask. Arrival times earlier than the departure
// time-of-day roll over to the next day.
func expandSSIMRecord(rec ssimRecord) []Leg {
	var legs []Leg
	for day := rec.startDate; !day.After(rec.endDate); day = day.AddDate(0, 0, 1) {
		if len(rec.days) > 0 && !rec.days[isoWeekday(day)] {
			continue
		}
		dep := day.Add(time.Duration(rec.depMinutes) * time.Minute)
		arr := day.Add(time.Duration(rec.arrMinutes) * time.Minute)
		if arr.Before(dep) {
			arr = arr.AddDate(0, 0, 1)
		}
		nature := NaturePax
		if cargoServiceTypes[rec.serviceType] {
			nature = NatureCargo
		}
		legs = append(legs, Leg{
			Carrier:      rec.carrier,
			FlightNumber: rec.flightNumber,
			AircraftType: rec.equipment,
			ServiceType:  rec.serviceType,
			Origin:       rec.origin,
			Destination:  rec.destination,
			DepartureUTC: dep,
			ArrivalUTC:   arr,
			Nature:       nature,
		})
	}
	return legs
}

func field(line string, from, to int) string {
	return strings.ToUpper(strings.TrimSpace(line[from:to]))
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func parseHHMM(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, false
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(s[2:])
	if err != nil {
		return 0, false
	}
	if h >= 24 || m >= 60 {
		return 0, false
	}
	return h*60 + m, true
}

var ssimMonths = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// parseSSIMDate reads the DDMMMYY date fields, e.g. "01JUN25".
func parseSSIMDate(s string) (time.Time, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 7 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(s[:2])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := ssimMonths[s[2:5]]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(s[5:])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(2000+year, month, day, 0, 0, 0, 0, time.UTC), true
}

// ---------------------------------------------------------------------------
// Tabular format
// ---------------------------------------------------------------------------

// columnAliases maps canonical column names onto the header spellings seen
// across seasons of the feed.
var columnAliases = map[string][]string{
	"season":       {"temporada", "ds_temporada", "season_code", "temporada_ref"},
	"carrier":      {"cia", "cia_aerea", "airline", "airline_code", "cia_operadora"},
	"number":       {"numero_voo", "nr_voo", "flight_number", "numero"},
	"aircraft":     {"act_type", "aircraft_type", "icao_tipo_equipamento", "equipamento", "equipment"},
	"origin":       {"origem", "origin", "aerodromo_origem", "aeroporto_origem"},
	"destination":  {"destino", "destination", "aerodromo_destino", "aeroporto_destino"},
	"op_airport":   {"aeroporto", "aeroporto_operacao", "airport", "icao_aeroporto"},
	"departure":    {"dt_partida_utc", "partida_utc", "horario_partida_utc", "departure_utc"},
	"arrival":      {"dt_chegada_utc", "chegada_utc", "horario_chegada_utc", "arrival_utc"},
	"nature":       {"natureza", "tipo_voo", "dom_int", "flight_nature"},
	"seats":        {"assentos_previstos", "assentos", "capacity", "payload_assentos"},
}

// mandatoryColumns must resolve after aliasing for the file to be usable.
var mandatoryColumns = []string{"carrier", "number", "aircraft", "origin", "destination"}

func parseTabular(text string) ([]Leg, error) {
	rows, err := readDelimited(text)
	if err != nil {
		// Some seasons ship the table as whitespace-aligned columns.
		rows = readFixedWidth(text)
		if len(rows) < 2 {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: table has no data rows", ErrFormat)
	}

	index, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}

	cell := func(row []string, name string) string {
		col, ok := index[name]
		if !ok || col >= len(row) {
			return ""
		}
		return strings.ToUpper(strings.TrimSpace(row[col]))
	}

	legs := make([]Leg, 0, len(rows)-1)
	for _, row := range rows[1:] {
		leg := Leg{
			Season:           cell(row, "season"),
			Carrier:          cell(row, "carrier"),
			FlightNumber:     cell(row, "number"),
			AircraftType:     cell(row, "aircraft"),
			Origin:           cell(row, "origin"),
			Destination:      cell(row, "destination"),
			OperatingAirport: cell(row, "op_airport"),
			Nature:           cell(row, "nature"),
			DepartureUTC:     parseTimestamp(cell(row, "departure")),
			ArrivalUTC:       parseTimestamp(cell(row, "arrival")),
			Seats:            parseSeats(cell(row, "seats")),
		}
		legs = append(legs, leg)
	}
	if len(legs) == 0 {
		return nil, fmt.Errorf("%w: table has no data rows", ErrFormat)
	}
	return legs, nil
}

func readDelimited(text string) ([][]string, error) {
	lines := strings.Split(text, "\n")
	sampleLen := 5
	if len(lines) < sampleLen {
		sampleLen = len(lines)
	}
	sample := strings.Join(lines[:sampleLen], "\n")

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(sample)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func detectDelimiter(sample string) rune {
	for _, d := range []rune{';', ',', '|', '\t'} {
		if strings.ContainsRune(sample, d) {
			return d
		}
	}
	return ','
}

// readFixedWidth is a crude fallback for whitespace-aligned tables: each line
// is split on runs of whitespace.
func readFixedWidth(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			rows = append(rows, fields)
		}
	}
	return rows
}

func resolveColumns(header []string) (map[string]int, error) {
	lower := make(map[string]int, len(header))
	for i, h := range header {
		lower[strings.ToLower(strings.TrimSpace(h))] = i
	}

	index := make(map[string]int)
	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			if col, ok := lower[alias]; ok {
				index[canonical] = col
				break
			}
		}
	}

	var missing []string
	for _, name := range mandatoryColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing mandatory columns %v (headers: %v)", ErrFormat, missing, header)
	}
	return index, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
	"2006-01-02",
}

// parseTimestamp returns the zero time when the value cannot be interpreted;
// unparseable timestamps are not a hard failure in tabular files and the rows
// are dropped later by event preparation.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseSeats(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return int(f)
	}
	return 0
}
