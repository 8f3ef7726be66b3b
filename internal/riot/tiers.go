package riot

import (
	"fmt"
	"strings"
)

// Tier order for comparison (higher index = higher rank)
var TierOrder = map[string]int{
	"IRON":        0,
	"BRONZE":      1,
	"SILVER":      2,
	"GOLD":        3,
	"PLATINUM":    4,
	"EMERALD":     5,
	"DIAMOND":     6,
	"MASTER":      7,
	"GRANDMASTER": 8,
	"CHALLENGER":  9,
}

// Division order (higher index = higher rank within tier)
var DivisionOrder = map[string]int{
	"IV":  0,
	"III": 1,
	"II":  2,
	"I":   3,
}

// ApexTiers return their whole roster in one call and have no division.
// Highest first.
var ApexTiers = []string{"CHALLENGER", "GRANDMASTER", "MASTER"}

// PagedTiers are listed page by page and require a division. Highest first.
var PagedTiers = []string{"DIAMOND", "EMERALD", "PLATINUM", "GOLD", "SILVER", "BRONZE", "IRON"}

// Divisions in listing order
var Divisions = []string{"I", "II", "III", "IV"}

// TierShortCodes maps CLI shorthands to tier names
var TierShortCodes = map[string]string{
	"C":  "CHALLENGER",
	"GM": "GRANDMASTER",
	"M":  "MASTER",
	"D":  "DIAMOND",
	"E":  "EMERALD",
	"P":  "PLATINUM",
	"G":  "GOLD",
	"S":  "SILVER",
	"B":  "BRONZE",
	"I":  "IRON",
}

var apexLeaguePaths = map[string]string{
	"MASTER":      "masterleagues",
	"GRANDMASTER": "grandmasterleagues",
	"CHALLENGER":  "challengerleagues",
}

// IsApexTier reports whether tier is master or above
func IsApexTier(tier string) bool {
	_, ok := apexLeaguePaths[strings.ToUpper(tier)]
	return ok
}

// NormalizeTier upper-cases tier and expands short codes. Unknown tiers are a configuration error.
func NormalizeTier(tier string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(tier))
	if full, ok := TierShortCodes[t]; ok {
		t = full
	}
	if _, ok := TierOrder[t]; !ok {
		return "", fmt.Errorf("unknown tier %q: %w", tier, ErrConfiguration)
	}
	return t, nil
}

// NormalizeDivision accepts roman (I..IV) or arabic (1..4) divisions.
// An empty input stays empty.
func NormalizeDivision(division string) (string, error) {
	d := strings.ToUpper(strings.TrimSpace(division))
	switch d {
	case "":
		return "", nil
	case "1":
		d = "I"
	case "2":
		d = "II"
	case "3":
		d = "III"
	case "4":
		d = "IV"
	}
	if _, ok := DivisionOrder[d]; !ok {
		return "", fmt.Errorf("unknown division %q: %w", division, ErrConfiguration)
	}
	return d, nil
}
