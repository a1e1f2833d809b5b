// Package potion implements the drain-detection and ticket-reconciliation
// pipeline: fill-rate estimation, rate-of-change drain detection with
// continuous-refill compensation, travel-time-aware ticket matching, and
// overflow-risk projection.
package potion

import (
	"errors"
	"time"
)

// ErrInsufficientData is returned when a cauldron has no usable readings.
// It is distinct from a zero fill rate: zero rate means "observed, never
// filling", this error means "nothing observed at all".
var ErrInsufficientData = errors.New("insufficient level data")

// LevelReading is a single telemetry sample for one cauldron.
type LevelReading struct {
	CauldronID string    `json:"cauldron_id"`
	Timestamp  time.Time `json:"timestamp"`
	Level      float64   `json:"level"` // litres
}

// FillRate is the steady-state filling speed of one cauldron, excluding
// drains. One value per cauldron per analysis run.
type FillRate struct {
	CauldronID string  `json:"cauldron_id"`
	PerMinute  float64 `json:"fill_rate_per_min"`
	PerHour    float64 `json:"fill_rate_per_hour"`
}

// DrainEvent is an inferred interval during which potion was collected
// from a cauldron. Collected volume compensates for the potion generated
// while the drain was in progress:
//
//	Collected = (LevelBefore - LevelAfter) + FillRateUsed * duration
//
// Events are never mutated after the detector emits them.
type DrainEvent struct {
	CauldronID   string    `json:"cauldron_id"`
	Start        time.Time `json:"start_time"`
	End          time.Time `json:"end_time"`
	LevelBefore  float64   `json:"level_before"`
	LevelAfter   float64   `json:"level_after"`
	FillRateUsed float64   `json:"fill_rate_used"` // litres/min
	Collected    float64   `json:"collected_volume"`
}

// DurationMinutes returns the drain duration in minutes.
func (e DrainEvent) DurationMinutes() float64 {
	return e.End.Sub(e.Start).Minutes()
}

// Ticket is an externally reported transport record claiming a collection
// occurred.
type Ticket struct {
	TicketID   string    `json:"ticket_id"`
	CauldronID string    `json:"cauldron_id"`
	CourierID  string    `json:"courier_id"`
	Reported   time.Time `json:"reported_timestamp"`
	Volume     float64   `json:"reported_volume"` // litres
}

// MatchStatus classifies one drain/ticket pairing.
type MatchStatus string

const (
	StatusMatched         MatchStatus = "MATCHED"
	StatusUnderreported   MatchStatus = "UNDER_REPORTED"
	StatusOverreported    MatchStatus = "OVER_REPORTED"
	StatusMissingTicket   MatchStatus = "NO_TICKET_FOUND"
	StatusUnmatchedTicket MatchStatus = "UNMATCHED_TICKET"
)

// MatchResult pairs a drain event with a ticket (either side may be
// absent: a drain with no ticket is NO_TICKET_FOUND, a ticket with no
// drain is UNMATCHED_TICKET). VolumeDelta is ticket volume minus
// collected volume where both sides exist.
type MatchResult struct {
	Drain       *DrainEvent `json:"drain_event,omitempty"`
	Ticket      *Ticket     `json:"ticket,omitempty"`
	Status      MatchStatus `json:"status"`
	VolumeDelta float64     `json:"volume_delta"`
	PctDiff     float64     `json:"pct_diff"`
}

// CauldronMeta is static reference data for one cauldron.
type CauldronMeta struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Capacity  float64 `json:"max_volume"` // litres
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RiskTier buckets a cauldron's projected time to overflow.
type RiskTier string

const (
	RiskHigh   RiskTier = "HIGH"
	RiskMedium RiskTier = "MEDIUM"
	RiskLow    RiskTier = "LOW"
	RiskNone   RiskTier = "NONE"
)

// OverflowRisk is the forward projection for one cauldron. HoursToOverflow
// is meaningless when Tier is NONE (fill rate was zero or negative).
type OverflowRisk struct {
	CauldronID      string   `json:"cauldron_id"`
	CurrentLevel    float64  `json:"current_level"`
	Capacity        float64  `json:"max_volume"`
	UtilizationPct  float64  `json:"utilization_pct"`
	FillRatePerHour float64  `json:"fill_rate_per_hour"`
	HoursToOverflow float64  `json:"hours_to_overflow"`
	Tier            RiskTier `json:"risk_level"`
}

// Snapshot is one immutable batch of fetched data. The pipeline treats it
// as read-only; running twice on the same snapshot yields identical
// results.
type Snapshot struct {
	Readings    []LevelReading     `json:"readings"`
	Tickets     []Ticket           `json:"tickets"`
	Cauldrons   []CauldronMeta     `json:"cauldrons"`
	TravelTimes map[string]float64 `json:"travel_times"` // cauldron id -> minutes to market
	FetchedAt   time.Time          `json:"fetched_at"`
}

// Capacity returns the capacity for a cauldron id, or 0 if unknown.
func (s *Snapshot) Capacity(id string) float64 {
	for _, c := range s.Cauldrons {
		if c.ID == id {
			return c.Capacity
		}
	}
	return 0
}
