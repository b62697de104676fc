package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ssimFixtureHeader = "1AIRLINE STANDARD SCHEDULE DATA SET  1 of 1"

type ssimSpec struct {
	carrier   string
	number    string
	service   string
	startDate string
	endDate   string
	days      string
	origin    string
	depTime   string
	dest      string
	arrTime   string
	equipment string
}

// ssimLine builds a type-3 record with fields at their fixed offsets.
func ssimLine(s ssimSpec) string {
	line := []byte(strings.Repeat(" ", 75))
	copy(line[0:], "3 ")
	copy(line[2:], s.carrier)
	copy(line[5:], s.number)
	copy(line[13:], s.service)
	copy(line[14:], s.startDate)
	copy(line[21:], s.endDate)
	copy(line[28:], s.days)
	copy(line[36:], s.origin)
	copy(line[43:], s.depTime)
	copy(line[54:], s.dest)
	copy(line[61:], s.arrTime)
	copy(line[72:], s.equipment)
	return string(line)
}

func ssimFile(lines ...string) string {
	return ssimFixtureHeader + "\n" + strings.Join(lines, "\n") + "\n"
}

func defaultSpec() ssimSpec {
	return ssimSpec{
		carrier:   "AA",
		number:    "0100",
		service:   "J",
		startDate: "01JUN25",
		endDate:   "01JUN25",
		days:      "1234567",
		origin:    "AAA",
		depTime:   "0800",
		dest:      "BBB",
		arrTime:   "1000",
		equipment: "738",
	}
}

func TestParseEmptyPayload(t *testing.T) {
	_, err := Parse("   \n  ")
	require.ErrorIs(t, err, ErrFormat)
}

func TestParseSSIMSingleDay(t *testing.T) {
	legs, err := Parse(ssimFile(ssimLine(defaultSpec())))
	require.NoError(t, err)
	require.Len(t, legs, 1)

	leg := legs[0]
	assert.Equal(t, "AA", leg.Carrier)
	assert.Equal(t, "0100", leg.FlightNumber)
	assert.Equal(t, "738", leg.AircraftType)
	assert.Equal(t, "AAA", leg.Origin)
	assert.Equal(t, "BBB", leg.Destination)
	assert.Equal(t, NaturePax, leg.Nature)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), leg.DepartureUTC)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), leg.ArrivalUTC)
}

func TestParseSSIMWeekdayMask(t *testing.T) {
	// 2025-06-01 is a Sunday; the week 01..07 June holds one Monday (the 2nd).
	spec := defaultSpec()
	spec.endDate = "07JUN25"
	spec.days = "1      "

	legs, err := Parse(ssimFile(ssimLine(spec)))
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), legs[0].DepartureUTC)
}

func TestParseSSIMEmptyMaskMeansDaily(t *testing.T) {
	spec := defaultSpec()
	spec.endDate = "07JUN25"
	spec.days = "       "

	legs, err := Parse(ssimFile(ssimLine(spec)))
	require.NoError(t, err)
	assert.Len(t, legs, 7)
}

func TestParseSSIMOvernightRollover(t *testing.T) {
	spec := defaultSpec()
	spec.depTime = "2350"
	spec.arrTime = "0010"

	legs, err := Parse(ssimFile(ssimLine(spec)))
	require.NoError(t, err)
	require.Len(t, legs, 1)

	leg := legs[0]
	assert.Equal(t, 20*time.Minute, leg.ArrivalUTC.Sub(leg.DepartureUTC))
	assert.False(t, leg.ArrivalUTC.Before(leg.DepartureUTC))
}

func TestParseSSIMCargoServiceType(t *testing.T) {
	spec := defaultSpec()
	spec.service = "F"

	legs, err := Parse(ssimFile(ssimLine(spec)))
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, NatureCargo, legs[0].Nature)
}

func TestParseSSIMDropsBadLines(t *testing.T) {
	badTime := defaultSpec()
	badTime.depTime = "2560"
	badDate := defaultSpec()
	badDate.startDate = "99XXX25"

	good := defaultSpec()
	file := ssimFile(
		"3 TOO SHORT",
		ssimLine(badTime),
		ssimLine(badDate),
		ssimLine(good),
	)
	legs, err := Parse(file)
	require.NoError(t, err)
	assert.Len(t, legs, 1)
}

func TestParseSSIMNoUsableRecords(t *testing.T) {
	bad := defaultSpec()
	bad.depTime = "9999"
	_, err := Parse(ssimFile(ssimLine(bad)))
	require.ErrorIs(t, err, ErrFormat)
}

func TestParseTabularSemicolon(t *testing.T) {
	text := strings.Join([]string{
		"cia;numero_voo;act_type;origem;destino;partida_utc;chegada_utc;assentos_previstos;natureza",
		"aa;100;738;gru;gig;2025-06-01T08:00:00Z;2025-06-01T09:00:00Z;186;PAX",
		"AA;200;73F;GIG;GRU;2025-06-01T10:00:00Z;not-a-date;;CARGO",
	}, "\n")

	legs, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, legs, 2)

	first := legs[0]
	assert.Equal(t, "AA", first.Carrier)
	assert.Equal(t, "GRU", first.Origin)
	assert.Equal(t, "GIG", first.Destination)
	assert.Equal(t, 186, first.Seats)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), first.DepartureUTC)

	// Unparseable timestamps degrade to unknown instead of failing the file.
	second := legs[1]
	assert.True(t, second.ArrivalUTC.IsZero())
	assert.Equal(t, NatureCargo, second.Nature)
	assert.Equal(t, 0, second.Seats)
}

func TestParseTabularHeaderAliases(t *testing.T) {
	text := strings.Join([]string{
		"airline,flight_number,equipment,origin,destination,departure_utc,arrival_utc",
		"LA,3001,320,GRU,POA,2025-06-02T12:00:00Z,2025-06-02T13:30:00Z",
	}, "\n")

	legs, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, "LA", legs[0].Carrier)
	assert.Equal(t, "320", legs[0].AircraftType)
}

func TestParseTabularMissingMandatoryColumns(t *testing.T) {
	text := strings.Join([]string{
		"cia;numero_voo;origem;destino",
		"AA;100;GRU;GIG",
	}, "\n")

	_, err := Parse(text)
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "aircraft")
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', detectDelimiter("a;b;c"))
	assert.Equal(t, ',', detectDelimiter("a,b,c"))
	assert.Equal(t, '|', detectDelimiter("a|b|c"))
	assert.Equal(t, ',', detectDelimiter("plain text"))
}
