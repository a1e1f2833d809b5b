package potion

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greywick-data/potionflow/internal/timeutil"
)

func testParams() Params {
	return Params{
		Detector: defaultDetector(),
		Matcher:  defaultMatcher(),
		Risk:     defaultRisk(),
		Workers:  4,
	}
}

func testSnapshot() *Snapshot {
	readings := []LevelReading{
		// Cauldron c: the worked reconciliation example. Fills at
		// 2 L/min, drains 390 L between t=10 and t=20.
		reading("c", 0, 500),
		reading("c", 10, 520),
		reading("c", 20, 150),
		reading("c", 30, 170),
		// Cauldron q: quiet, just filling. No drains, real overflow risk.
		reading("q", 0, 800),
		reading("q", 10, 850),
		reading("q", 20, 900),
		// One malformed record.
		{CauldronID: "c", Level: -3, Timestamp: at(40)},
	}
	return &Snapshot{
		Readings: readings,
		Tickets: []Ticket{
			ticket("t-1", "c", "k-1", 34, 395),
			ticket("t-stray", "q", "k-2", 200, 120),
		},
		Cauldrons: []CauldronMeta{
			{ID: "c", Name: "Copper Bottom", Capacity: 1000},
			{ID: "q", Name: "Quiet Hill", Capacity: 1000},
			{ID: "ghost", Name: "No Telemetry", Capacity: 500},
		},
		TravelTimes: map[string]float64{"c": 14, "q": 8},
		FetchedAt:   at(60),
	}
}

func TestRunEndToEnd(t *testing.T) {
	clock := timeutil.NewMockClock(at(90))
	p := testParams()
	p.Clock = clock

	res, err := Run(context.Background(), testSnapshot(), p)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, at(90), res.GeneratedAt)
	assert.Equal(t, 1, res.SkippedReadings)
	assert.Equal(t, 1, res.SkippedCauldrons)

	require.Len(t, res.FillRates, 2)
	assert.Equal(t, "c", res.FillRates[0].CauldronID)
	assert.InDelta(t, 2.0, res.FillRates[0].PerMinute, 1e-9)
	assert.Equal(t, "q", res.FillRates[1].CauldronID)
	assert.InDelta(t, 5.0, res.FillRates[1].PerMinute, 1e-9)

	require.Len(t, res.Drains, 1)
	assert.Equal(t, "c", res.Drains[0].CauldronID)
	assert.InDelta(t, 390.0, res.Drains[0].Collected, 1e-9)

	require.Len(t, res.Matches, 2)
	assert.Equal(t, StatusMatched, res.Matches[0].Status)
	assert.Equal(t, StatusUnmatchedTicket, res.Matches[1].Status)

	// q fills at 5 L/min with 100 L of headroom: 20 minutes to overflow.
	require.NotEmpty(t, res.Risks)
	assert.Equal(t, "q", res.Risks[0].CauldronID)
	assert.Equal(t, RiskHigh, res.Risks[0].Tier)
	assert.InDelta(t, 100.0/5/60, res.Risks[0].HoursToOverflow, 1e-9)

	require.NotEmpty(t, res.Priorities)
	assert.Equal(t, "q", res.Priorities[0].CauldronID)
	assert.Equal(t, PriorityCritical, res.Priorities[0].Band)

	require.Len(t, res.Couriers, 1)
	assert.Equal(t, "k-1", res.Couriers[0].CourierID)

	assert.Equal(t, 1, res.Summary.Matched)
	assert.Equal(t, 1, res.Summary.UnmatchedTickets)
}

func TestRunDeterministicAcrossWorkerCounts(t *testing.T) {
	clock := timeutil.NewMockClock(at(90))
	snap := testSnapshot()

	var baseline *Results
	for _, workers := range []int{0, 1, 2, 8} {
		p := testParams()
		p.Clock = clock
		p.Workers = workers

		res, err := Run(context.Background(), snap, p)
		require.NoError(t, err)
		if baseline == nil {
			baseline = res
			continue
		}
		diff := cmp.Diff(baseline, res,
			cmpopts.IgnoreFields(Results{}, "RunID"),
			cmpopts.EquateEmpty(),
		)
		assert.Empty(t, diff, "workers=%d diverged", workers)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testSnapshot(), testParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunEmptySnapshot(t *testing.T) {
	res, err := Run(context.Background(), &Snapshot{}, testParams())
	require.NoError(t, err)
	assert.Empty(t, res.FillRates)
	assert.Empty(t, res.Drains)
	assert.Empty(t, res.Matches)
	assert.Zero(t, res.Summary.TotalDrains)
	assert.False(t, res.GeneratedAt.IsZero())
}
