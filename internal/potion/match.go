package potion

import (
	"math"
	"sort"
	"time"
)

// MatcherConfig tunes drain/ticket reconciliation.
type MatcherConfig struct {
	// TolerancePct is the relative volume difference (percent) within
	// which a pairing counts as matched.
	TolerancePct float64
	// WindowMinutes is the half-width of the acceptance window around
	// the expected ticket timestamp.
	WindowMinutes float64
}

// MatchTickets reconciles drain events against reported tickets.
//
// The ticket for a drain is logically created only after the courier
// reaches market, so the expected ticket time is the drain end plus the
// cauldron's travel time. Candidates are same-cauldron tickets inside the
// window around that time; the candidate whose volume is closest to the
// collected volume wins, ties broken by closest timestamp.
//
// Matching is greedy in drain-end order: earlier drains claim tickets
// first and every drain and ticket appears in exactly one result. This
// is a deliberate approximation rather than a global assignment; windows
// for the same cauldron rarely overlap in practice.
//
// VolumeDelta is reported minus collected where both sides exist, the
// negated collected volume for a missing ticket, and the reported volume
// for an unmatched ticket.
func MatchTickets(drains []DrainEvent, tickets []Ticket, travelTimes map[string]float64, cfg MatcherConfig) []MatchResult {
	ordered := make([]DrainEvent, len(drains))
	copy(ordered, drains)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].End.Before(ordered[j].End)
	})

	consumed := make([]bool, len(tickets))
	results := make([]MatchResult, 0, len(ordered))

	for i := range ordered {
		drain := ordered[i]
		expected := drain.End.Add(time.Duration(travelTimes[drain.CauldronID] * float64(time.Minute)))
		window := time.Duration(cfg.WindowMinutes * float64(time.Minute))

		best := -1
		bestVolDiff := math.MaxFloat64
		bestTimeDiff := time.Duration(math.MaxInt64)
		for j, t := range tickets {
			if consumed[j] || t.CauldronID != drain.CauldronID {
				continue
			}
			timeDiff := absDuration(t.Reported.Sub(expected))
			if timeDiff > window {
				continue
			}
			volDiff := math.Abs(t.Volume - drain.Collected)
			if volDiff < bestVolDiff || (volDiff == bestVolDiff && timeDiff < bestTimeDiff) {
				best, bestVolDiff, bestTimeDiff = j, volDiff, timeDiff
			}
		}

		if best == -1 {
			results = append(results, MatchResult{
				Drain:       &ordered[i],
				Status:      StatusMissingTicket,
				VolumeDelta: -drain.Collected,
			})
			continue
		}

		consumed[best] = true
		ticket := tickets[best]
		pct := 0.0
		if drain.Collected > 0 {
			pct = math.Abs(ticket.Volume-drain.Collected) / drain.Collected * 100
		}
		status := StatusMatched
		switch {
		case pct <= cfg.TolerancePct:
			status = StatusMatched
		case ticket.Volume < drain.Collected:
			status = StatusUnderreported
		default:
			status = StatusOverreported
		}
		results = append(results, MatchResult{
			Drain:       &ordered[i],
			Ticket:      &ticket,
			Status:      status,
			VolumeDelta: ticket.Volume - drain.Collected,
			PctDiff:     pct,
		})
	}

	// Leftover tickets claim no drain at all.
	var leftovers []int
	for j := range tickets {
		if !consumed[j] {
			leftovers = append(leftovers, j)
		}
	}
	sort.SliceStable(leftovers, func(a, b int) bool {
		return tickets[leftovers[a]].Reported.Before(tickets[leftovers[b]].Reported)
	})
	for _, j := range leftovers {
		t := tickets[j]
		results = append(results, MatchResult{
			Ticket:      &t,
			Status:      StatusUnmatchedTicket,
			VolumeDelta: t.Volume,
		})
	}
	return results
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
