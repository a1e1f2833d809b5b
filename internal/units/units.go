// Package units provides shared constants and conversions for volume
// flow rates and travel-time costs.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit constants. Fill rates are stored in litres per minute.
const (
	LPM = "lpm" // litres per minute
	LPH = "lph" // litres per hour
)

// ValidUnits contains all valid rate unit values
var ValidUnits = []string{LPM, LPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertRate converts a fill rate from litres per minute to the target
// units. Unknown units fall back to litres per minute.
func ConvertRate(rateLPM float64, targetUnits string) float64 {
	switch targetUnits {
	case LPH:
		return rateLPM * 60
	case LPM:
		return rateLPM
	default:
		return rateLPM
	}
}

// ParseClockCost parses a travel cost in HH:MM:SS form, as carried on
// network graph edges, into minutes.
func ParseClockCost(cost string) (float64, error) {
	parts := strings.Split(cost, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock cost %q, expected HH:MM:SS", cost)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in clock cost %q: %w", cost, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in clock cost %q: %w", cost, err)
	}
	s, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in clock cost %q: %w", cost, err)
	}
	if h < 0 || m < 0 || s < 0 {
		return 0, fmt.Errorf("negative component in clock cost %q", cost)
	}
	return float64(h)*60 + float64(m) + float64(s)/60, nil
}
