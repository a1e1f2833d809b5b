package potion

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ReconciliationSummary aggregates one run's match results.
type ReconciliationSummary struct {
	TotalDrains      int     `json:"total_drains"`
	Matched          int     `json:"matched"`
	Underreported    int     `json:"under_reported"`
	Overreported     int     `json:"over_reported"`
	MissingTickets   int     `json:"no_ticket"`
	UnmatchedTickets int     `json:"unmatched_tickets"`
	TotalDrained     float64 `json:"total_drained_volume"`
	TotalTicketed    float64 `json:"total_ticketed_volume"`
	Unaccounted      float64 `json:"total_unaccounted"`
	AccuracyPct      float64 `json:"accuracy_pct"`
}

// Summarize tallies match results. Accuracy is the matched share of
// drain-side results; unmatched tickets do not count against it.
func Summarize(results []MatchResult) ReconciliationSummary {
	var s ReconciliationSummary
	for _, r := range results {
		switch r.Status {
		case StatusMatched:
			s.Matched++
		case StatusUnderreported:
			s.Underreported++
		case StatusOverreported:
			s.Overreported++
		case StatusMissingTicket:
			s.MissingTickets++
		case StatusUnmatchedTicket:
			s.UnmatchedTickets++
		}
		if r.Drain != nil {
			s.TotalDrained += r.Drain.Collected
		}
		if r.Ticket != nil && r.Drain != nil {
			s.TotalTicketed += r.Ticket.Volume
		}
	}
	s.TotalDrains = s.Matched + s.Underreported + s.Overreported + s.MissingTickets
	s.Unaccounted = s.TotalDrained - s.TotalTicketed
	if s.TotalDrains > 0 {
		s.AccuracyPct = float64(s.Matched) / float64(s.TotalDrains) * 100
	}
	return s
}

// CourierReport scores one courier's reporting honesty.
type CourierReport struct {
	CourierID       string  `json:"courier_id"`
	Collections     int     `json:"total_collections"`
	MatchedTickets  int     `json:"matched_tickets"`
	SuspiciousCount int     `json:"suspicious_tickets"`
	AvgDiscrepancy  float64 `json:"avg_discrepancy"`
	TrustScore      float64 `json:"trust_score"`
	RiskBand        string  `json:"risk_level"`
}

// RateCouriers computes per-courier performance from the drain-side match
// results. Trust starts at 100 and loses 5 points per litre of average
// discrepancy and 10 per suspicious collection, clamped to [0, 100].
// Lowest trust first.
func RateCouriers(results []MatchResult) []CourierReport {
	type acc struct {
		collections int
		matched     int
		suspicious  int
		deltas      []float64
	}
	byCourier := make(map[string]*acc)
	for _, r := range results {
		if r.Ticket == nil || r.Drain == nil {
			continue
		}
		a := byCourier[r.Ticket.CourierID]
		if a == nil {
			a = &acc{}
			byCourier[r.Ticket.CourierID] = a
		}
		a.collections++
		a.deltas = append(a.deltas, r.VolumeDelta)
		switch r.Status {
		case StatusMatched:
			a.matched++
		case StatusUnderreported:
			a.suspicious++
		}
	}

	var out []CourierReport
	for id, a := range byCourier {
		avg := stat.Mean(a.deltas, nil)
		trust := 100 - math.Abs(avg)*5 - float64(a.suspicious)*10
		trust = math.Min(100, math.Max(0, trust))
		band := "RELIABLE"
		switch {
		case trust < 40:
			band = "HIGH RISK"
		case trust < 70:
			band = "MODERATE"
		}
		out = append(out, CourierReport{
			CourierID:       id,
			Collections:     a.collections,
			MatchedTickets:  a.matched,
			SuspiciousCount: a.suspicious,
			AvgDiscrepancy:  avg,
			TrustScore:      trust,
			RiskBand:        band,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TrustScore != out[j].TrustScore {
			return out[i].TrustScore < out[j].TrustScore
		}
		return out[i].CourierID < out[j].CourierID
	})
	return out
}

// SuspiciousCauldron aggregates unexplained volume loss at one cauldron.
type SuspiciousCauldron struct {
	CauldronID    string  `json:"cauldron_id"`
	MissingVolume float64 `json:"missing_volume"`
	EventCount    int     `json:"event_count"`
}

// SuspiciousPatterns summarizes where potion is going missing.
type SuspiciousPatterns struct {
	// Systematic lists cauldrons with at least three suspicious events,
	// worst first: repeated loss at one site points at the site, not at
	// sensor noise.
	Systematic       []SuspiciousCauldron `json:"systematic_theft"`
	MissingTickets   int                  `json:"missing_tickets"`
	TotalUnaccounted float64              `json:"total_unaccounted"`
}

// FindSuspiciousPatterns mines under-reported and missing-ticket results
// for repeat offenders.
func FindSuspiciousPatterns(results []MatchResult) SuspiciousPatterns {
	var p SuspiciousPatterns
	type acc struct {
		missing float64
		count   int
	}
	byCauldron := make(map[string]*acc)
	for _, r := range results {
		if r.Status != StatusUnderreported && r.Status != StatusMissingTicket {
			continue
		}
		if r.Status == StatusMissingTicket {
			p.MissingTickets++
		}
		p.TotalUnaccounted += math.Abs(r.VolumeDelta)
		if r.Drain == nil {
			continue
		}
		a := byCauldron[r.Drain.CauldronID]
		if a == nil {
			a = &acc{}
			byCauldron[r.Drain.CauldronID] = a
		}
		a.missing += math.Abs(r.VolumeDelta)
		a.count++
	}
	for id, a := range byCauldron {
		if a.count < 3 {
			continue
		}
		p.Systematic = append(p.Systematic, SuspiciousCauldron{
			CauldronID:    id,
			MissingVolume: a.missing,
			EventCount:    a.count,
		})
	}
	sort.SliceStable(p.Systematic, func(i, j int) bool {
		return p.Systematic[i].MissingVolume > p.Systematic[j].MissingVolume
	})
	return p
}
