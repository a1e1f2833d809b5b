package potion

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greywick-data/potionflow/internal/timeutil"
)

// Params holds the full tuning surface for one pipeline run.
type Params struct {
	Detector DetectorConfig
	Matcher  MatcherConfig
	Risk     RiskConfig
	// DefaultFillRate is used for cauldrons that never filled while
	// observed.
	DefaultFillRate float64
	// Workers bounds the per-cauldron analysis pool. Values below 1 run
	// sequentially.
	Workers int
	// Clock supplies run timestamps; nil means wall clock.
	Clock timeutil.Clock
}

// Results is everything one run produces. Runs are stateless: the same
// snapshot and params always produce the same results (modulo RunID and
// GeneratedAt).
type Results struct {
	RunID       string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	FillRates   []FillRate            `json:"fill_rates"`
	Drains      []DrainEvent          `json:"drain_events"`
	Matches     []MatchResult         `json:"match_results"`
	Risks       []OverflowRisk        `json:"overflow_risks"`
	Priorities  []CollectionPriority  `json:"priorities"`
	Couriers    []CourierReport       `json:"couriers"`
	Patterns    SuspiciousPatterns    `json:"patterns"`
	Summary     ReconciliationSummary `json:"summary"`
	// SkippedReadings counts malformed telemetry records dropped at the
	// ingestion boundary; SkippedCauldrons counts cauldrons excluded for
	// having no usable readings at all.
	SkippedReadings  int `json:"skipped_readings"`
	SkippedCauldrons int `json:"skipped_cauldrons"`
}

// Run executes the full pipeline over one snapshot.
//
// Fill-rate estimation and drain detection have no cross-cauldron
// dependency and run on a bounded worker pool; the matcher does depend on
// chronological order, so detected drains are merged and sorted by end
// time before matching.
func Run(ctx context.Context, snap *Snapshot, p Params) (*Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	res := &Results{
		RunID:       uuid.NewString(),
		GeneratedAt: clock.Now(),
	}

	series := Normalize(snap.Readings)
	for _, s := range series {
		res.SkippedReadings += s.Skipped
	}

	// Cauldrons named by metadata but absent from telemetry (or with
	// nothing but malformed readings) are the "insufficient data" case:
	// excluded from aggregates, surfaced as a count.
	usable := make(map[string]*Series)
	for id, s := range series {
		if s.Len() > 0 {
			usable[id] = s
		} else {
			res.SkippedCauldrons++
		}
	}
	for _, meta := range snap.Cauldrons {
		if _, ok := series[meta.ID]; !ok {
			res.SkippedCauldrons++
		}
	}

	ids := make([]string, 0, len(usable))
	for id := range usable {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(ids) && len(ids) > 0 {
		workers = len(ids)
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		tasks = make(chan string)
	)
	rates := make(map[string]FillRate, len(ids))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range tasks {
				s := usable[id]
				rate, err := EstimateFillRate(s, p.DefaultFillRate)
				if err != nil {
					continue // only possible for empty series, which usable excludes
				}
				drains := DetectDrains(s, rate, p.Detector)
				mu.Lock()
				rates[id] = rate
				res.Drains = append(res.Drains, drains...)
				mu.Unlock()
			}
		}()
	}
	for _, id := range ids {
		select {
		case <-ctx.Done():
			close(tasks)
			wg.Wait()
			return nil, ctx.Err()
		case tasks <- id:
		}
	}
	close(tasks)
	wg.Wait()

	// Deterministic output order regardless of worker scheduling. The
	// matcher consumes tickets greedily in drain-end order, so this sort
	// is load-bearing, not cosmetic.
	sort.SliceStable(res.Drains, func(i, j int) bool {
		a, b := res.Drains[i], res.Drains[j]
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		if a.CauldronID != b.CauldronID {
			return a.CauldronID < b.CauldronID
		}
		return a.Start.Before(b.Start)
	})
	for _, id := range ids {
		res.FillRates = append(res.FillRates, rates[id])
	}

	res.Matches = MatchTickets(res.Drains, snap.Tickets, snap.TravelTimes, p.Matcher)
	res.Risks = EstimateOverflow(usable, rates, snap.Cauldrons, p.Risk)
	res.Priorities = RankPriorities(res.Risks, snap.TravelTimes, p.Risk)
	res.Couriers = RateCouriers(res.Matches)
	res.Patterns = FindSuspiciousPatterns(res.Matches)
	res.Summary = Summarize(res.Matches)
	return res, nil
}
