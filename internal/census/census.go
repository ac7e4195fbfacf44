// Package census builds download URLs for the TIGER/Line shapefile
// archives the geometry artifacts come from.
package census

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// FIPSByState maps state postal abbreviation to 2-digit FIPS code for all
// 50 states plus DC.
var FIPSByState = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56",
}

// stateByFIPS is the reverse lookup from FIPS code to abbreviation.
var stateByFIPS map[string]string

func init() {
	stateByFIPS = make(map[string]string, len(FIPSByState))
	for abbr, fips := range FIPSByState {
		stateByFIPS[fips] = abbr
	}
}

// StateFromFIPS returns the postal abbreviation for a FIPS code.
func StateFromFIPS(fips string) (string, bool) {
	abbr, ok := stateByFIPS[fips]
	return abbr, ok
}

// NormalizeState accepts a postal abbreviation or a 2-digit FIPS code and
// returns the FIPS code.
func NormalizeState(s string) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if _, ok := stateByFIPS[key]; ok {
		return key, nil
	}
	if fips, ok := FIPSByState[key]; ok {
		return fips, nil
	}
	return "", eris.Errorf("census: unknown state %q", s)
}

// TractURL builds the Census Bureau download URL for a state's census
// tract shapefile archive, tl_{year}_{fips}_tract.zip.
func TractURL(year int, stateFIPS string) string {
	return fmt.Sprintf(
		"https://www2.census.gov/geo/tiger/TIGER%d/TRACT/tl_%d_%s_tract.zip",
		year, year, stateFIPS,
	)
}
