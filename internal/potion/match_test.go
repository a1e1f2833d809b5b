package potion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultMatcher() MatcherConfig {
	return MatcherConfig{TolerancePct: 2, WindowMinutes: 720}
}

func drainEvent(id string, startMin, endMin, before, after, collected float64) DrainEvent {
	return DrainEvent{
		CauldronID:  id,
		Start:       at(startMin),
		End:         at(endMin),
		LevelBefore: before,
		LevelAfter:  after,
		Collected:   collected,
	}
}

func ticket(id, cauldron, courier string, min, volume float64) Ticket {
	return Ticket{
		TicketID:   id,
		CauldronID: cauldron,
		CourierID:  courier,
		Reported:   at(min),
		Volume:     volume,
	}
}

func TestMatchTicketsWithinTolerance(t *testing.T) {
	drains := []DrainEvent{drainEvent("c", 10, 20, 520, 150, 390)}
	tickets := []Ticket{ticket("t-1", "c", "k-1", 34, 395)}
	travel := map[string]float64{"c": 14}

	results := MatchTickets(drains, tickets, travel, defaultMatcher())
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, StatusMatched, r.Status)
	require.NotNil(t, r.Drain)
	require.NotNil(t, r.Ticket)
	assert.Equal(t, "t-1", r.Ticket.TicketID)
	assert.InDelta(t, 5.0, r.VolumeDelta, 1e-9)
	assert.InDelta(t, 100*5.0/390.0, r.PctDiff, 1e-9)
}

func TestMatchTicketsUnderAndOverReported(t *testing.T) {
	drains := []DrainEvent{
		drainEvent("a", 0, 10, 500, 100, 400),
		drainEvent("b", 0, 10, 500, 100, 400),
	}
	tickets := []Ticket{
		ticket("t-a", "a", "k-1", 60, 300), // 25% short
		ticket("t-b", "b", "k-2", 60, 500), // 25% over
	}

	results := MatchTickets(drains, tickets, nil, defaultMatcher())
	require.Len(t, results, 2)
	byCauldron := map[string]MatchResult{}
	for _, r := range results {
		byCauldron[r.Drain.CauldronID] = r
	}
	assert.Equal(t, StatusUnderreported, byCauldron["a"].Status)
	assert.InDelta(t, -100.0, byCauldron["a"].VolumeDelta, 1e-9)
	assert.Equal(t, StatusOverreported, byCauldron["b"].Status)
	assert.InDelta(t, 100.0, byCauldron["b"].VolumeDelta, 1e-9)
}

func TestMatchTicketsMissingAndUnmatched(t *testing.T) {
	drains := []DrainEvent{drainEvent("a", 0, 10, 500, 100, 400)}
	tickets := []Ticket{ticket("t-x", "other", "k-1", 30, 250)}

	results := MatchTickets(drains, tickets, nil, defaultMatcher())
	require.Len(t, results, 2)

	assert.Equal(t, StatusMissingTicket, results[0].Status)
	assert.Nil(t, results[0].Ticket)
	assert.InDelta(t, -400.0, results[0].VolumeDelta, 1e-9)

	assert.Equal(t, StatusUnmatchedTicket, results[1].Status)
	assert.Nil(t, results[1].Drain)
	assert.InDelta(t, 250.0, results[1].VolumeDelta, 1e-9)
}

func TestMatchTicketsWindowExcludesLateTicket(t *testing.T) {
	drains := []DrainEvent{drainEvent("a", 0, 10, 500, 100, 400)}
	// Expected ticket time is t=40; the window is 60 minutes, the ticket
	// lands 61 past it.
	tickets := []Ticket{ticket("t-1", "a", "k-1", 40+61, 400)}
	travel := map[string]float64{"a": 30}
	cfg := MatcherConfig{TolerancePct: 2, WindowMinutes: 60}

	results := MatchTickets(drains, tickets, travel, cfg)
	require.Len(t, results, 2)
	assert.Equal(t, StatusMissingTicket, results[0].Status)
	assert.Equal(t, StatusUnmatchedTicket, results[1].Status)
}

func TestMatchTicketsPrefersClosestVolume(t *testing.T) {
	drains := []DrainEvent{drainEvent("a", 0, 10, 500, 100, 400)}
	tickets := []Ticket{
		ticket("t-near-time", "a", "k-1", 15, 300),
		ticket("t-near-vol", "a", "k-2", 200, 398),
	}

	results := MatchTickets(drains, tickets, nil, defaultMatcher())
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Ticket)
	assert.Equal(t, "t-near-vol", results[0].Ticket.TicketID)
}

func TestMatchTicketsOneToOne(t *testing.T) {
	// Two drains, one plausible ticket: the earlier drain claims it, the
	// later one goes without. No ticket is used twice.
	drains := []DrainEvent{
		drainEvent("a", 100, 110, 500, 100, 400),
		drainEvent("a", 0, 10, 500, 100, 400),
	}
	tickets := []Ticket{ticket("t-1", "a", "k-1", 30, 400)}

	results := MatchTickets(drains, tickets, nil, defaultMatcher())
	require.Len(t, results, 2)
	assert.Equal(t, StatusMatched, results[0].Status)
	assert.Equal(t, at(10), results[0].Drain.End)
	assert.Equal(t, StatusMissingTicket, results[1].Status)
	assert.Equal(t, at(110), results[1].Drain.End)
}
