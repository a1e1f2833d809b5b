package potion

import (
	"math"
	"sort"
)

// RiskConfig tunes overflow tiering and collection priority.
type RiskConfig struct {
	// HighHours and MediumHours bound the HIGH and MEDIUM tiers:
	// projected overflow inside HighHours is HIGH, inside MediumHours is
	// MEDIUM, beyond that LOW.
	HighHours   float64
	MediumHours float64
	// CollectionMinutes is the time a courier spends emptying a
	// cauldron; UnloadMinutes the time unloading at market. Both count
	// against the window a dispatcher actually has.
	CollectionMinutes float64
	UnloadMinutes     float64
}

// EstimateOverflow projects time to overflow for every cauldron with
// metadata and at least one reading, ranked most urgent first. A fill
// rate at or below zero cannot overflow and reports tier NONE instead of
// dividing.
func EstimateOverflow(series map[string]*Series, rates map[string]FillRate, cauldrons []CauldronMeta, cfg RiskConfig) []OverflowRisk {
	var out []OverflowRisk
	for _, meta := range cauldrons {
		s := series[meta.ID]
		if s == nil || s.Len() == 0 || meta.Capacity <= 0 {
			continue
		}
		current := s.Last().Level
		rate := rates[meta.ID]

		r := OverflowRisk{
			CauldronID:      meta.ID,
			CurrentLevel:    current,
			Capacity:        meta.Capacity,
			UtilizationPct:  current / meta.Capacity * 100,
			FillRatePerHour: rate.PerHour,
			Tier:            RiskNone,
		}
		if rate.PerMinute > 0 {
			r.HoursToOverflow = (meta.Capacity - current) / rate.PerMinute / 60
			switch {
			case r.HoursToOverflow < cfg.HighHours:
				r.Tier = RiskHigh
			case r.HoursToOverflow < cfg.MediumHours:
				r.Tier = RiskMedium
			default:
				r.Tier = RiskLow
			}
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Tier == RiskNone) != (b.Tier == RiskNone) {
			return b.Tier == RiskNone
		}
		if a.Tier == RiskNone {
			return a.UtilizationPct > b.UtilizationPct
		}
		return a.HoursToOverflow < b.HoursToOverflow
	})
	return out
}

// PriorityBand labels the urgency of a collection run.
type PriorityBand string

const (
	PriorityCritical PriorityBand = "CRITICAL"
	PriorityUrgent   PriorityBand = "URGENT"
	PriorityHigh     PriorityBand = "HIGH"
	PriorityMedium   PriorityBand = "MEDIUM"
	PriorityLow      PriorityBand = "LOW"
)

// CollectionPriority ranks a cauldron for dispatch: how long until it
// overflows once the round trip overhead is subtracted.
type CollectionPriority struct {
	CauldronID      string       `json:"cauldron_id"`
	CurrentLevel    float64      `json:"current_level"`
	Capacity        float64      `json:"max_volume"`
	HoursToOverflow float64      `json:"hours_to_overflow"`
	TravelMinutes   float64      `json:"travel_time_min"`
	EffectiveHours  float64      `json:"effective_hours"`
	UrgencyScore    float64      `json:"urgency_score"`
	Band            PriorityBand `json:"priority"`
}

// RankPriorities converts overflow projections into a dispatch ranking.
// Effective hours subtract travel, collection and unload overhead from
// the projected overflow window; a negative result means the cauldron is
// already past the point where a courier could reach it in time.
// Cauldrons with no overflow risk are excluded. Highest urgency first.
func RankPriorities(risks []OverflowRisk, travelTimes map[string]float64, cfg RiskConfig) []CollectionPriority {
	var out []CollectionPriority
	for _, r := range risks {
		if r.Tier == RiskNone {
			continue
		}
		travel := travelTimes[r.CauldronID]
		overheadHours := (travel + cfg.CollectionMinutes + cfg.UnloadMinutes) / 60
		effective := r.HoursToOverflow - overheadHours

		p := CollectionPriority{
			CauldronID:      r.CauldronID,
			CurrentLevel:    r.CurrentLevel,
			Capacity:        r.Capacity,
			HoursToOverflow: r.HoursToOverflow,
			TravelMinutes:   travel,
			EffectiveHours:  effective,
		}
		switch {
		case effective < 0:
			p.Band = PriorityCritical
			p.UrgencyScore = 1000
		case effective < 6:
			p.Band = PriorityUrgent
			p.UrgencyScore = 100 / math.Max(effective, 0.1)
		case effective < 12:
			p.Band = PriorityHigh
			p.UrgencyScore = 50 / effective
		case effective < 24:
			p.Band = PriorityMedium
			p.UrgencyScore = 20 / effective
		default:
			p.Band = PriorityLow
			p.UrgencyScore = 10 / effective
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UrgencyScore > out[j].UrgencyScore
	})
	return out
}
