// Package classify holds the pure classification rules applied to linked
// flights: aircraft class buckets, domestic/international nature, and the
// short/long ground-stay category. No I/O, no mutable state.
package classify

import "strings"

// Aircraft class buckets.
const (
	Unknown = "UNKNOWN"
	Cargo   = "CARGO"
	Meli    = "MELI"
	ATR     = "ATR"
	Wide    = "WIDE"
	Narrow  = "NARROW"
	Cessna  = "CESSNA"
	Conecta = "CONECTA"
)

// Domestic/international flags and ground-stay categories.
const (
	Domestic      = "DOM"
	International = "INT"
	LongStay      = "PNT" // parked over four hours
	ShortStay     = "TST"
)

var wideBodyTypes = map[string]bool{
	"772": true, "773": true, "77W": true, "77L": true,
	"787": true, "788": true, "789": true, "78X": true,
	"330": true, "332": true, "333": true, "339": true,
	"359": true, "764": true, "763": true,
	"A35K": true, "A359": true,
}

var (
	narrowPrefixes = []string{"73", "32", "E19", "E17", "E18", "E14", "B73"}
	atrPrefixes    = []string{"ATR", "AT4", "AT7"}
	lightPrefixes  = []string{"C", "P", "BE", "SR", "TB", "PA"}
)

// meliTypes are the single-aisle large variants flown under the Meli
// e-commerce contract; they get their own bucket for resource planning.
var meliTypes = map[string]bool{"73C": true, "73M": true, "MELI": true}

var cargoServiceTypes = map[string]bool{"F": true, "M": true}

// Regional feeder carriers whose light equipment is serviced as a dedicated
// bucket regardless of type code.
var lightFleetCarriers = map[string]bool{"2F": true, "2Z": true}

var lightFleetTypes = map[string]bool{"C08": true, "C98": true, "CNA": true, "208": true}

const lightFleetMaxSeats = 50

// Aircraft maps an aircraft type code plus flight attributes to a class
// bucket. Precedence: feeder-carrier light fleet, cargo, Meli variants, ATR
// turboprops, wide bodies, narrow bodies, light general aviation; anything
// left defaults to NARROW.
func Aircraft(typeCode string, cargo bool, carrier, serviceType string, seats int) string {
	code := strings.ToUpper(strings.TrimSpace(typeCode))
	if code == "" {
		return Unknown
	}
	carrier = strings.ToUpper(strings.TrimSpace(carrier))
	serviceType = strings.ToUpper(strings.TrimSpace(serviceType))

	if lightFleetCarriers[carrier] {
		if lightFleetTypes[code] || cargo || (seats > 0 && seats <= lightFleetMaxSeats) {
			return Conecta
		}
	}

	if cargo || strings.HasSuffix(code, "F") || cargoServiceTypes[serviceType] {
		return Cargo
	}

	if meliTypes[code] {
		return Meli
	}

	if hasAnyPrefix(code, atrPrefixes) {
		return ATR
	}

	if wideBodyTypes[code] {
		return Wide
	}

	if hasAnyPrefix(code, narrowPrefixes) {
		return Narrow
	}

	if hasAnyPrefix(code, lightPrefixes) {
		return Cessna
	}

	return Narrow
}

// Flight classifies a flight as DOM or INT. When both airports resolve to a
// country the countries are compared; otherwise a heuristic applies: two
// three-letter codes are assumed domestic.
func Flight(origin, destination string, countries map[string]string) string {
	origin = strings.ToUpper(strings.TrimSpace(origin))
	destination = strings.ToUpper(strings.TrimSpace(destination))

	if len(countries) > 0 {
		oc := countries[origin]
		dc := countries[destination]
		if oc != "" && dc != "" {
			if oc == dc {
				return Domestic
			}
			return International
		}
	}

	if len(origin) == 3 && len(destination) == 3 && isAlpha(origin) && isAlpha(destination) {
		return Domestic
	}
	return International
}

// Operation buckets ground time into PNT (over four hours) or TST. Returns
// the empty string when the ground time is unknown.
func Operation(groundMinutes float64, known bool) string {
	if !known {
		return ""
	}
	if groundMinutes > 240 {
		return LongStay
	}
	return ShortStay
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
