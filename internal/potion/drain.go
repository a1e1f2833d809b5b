package potion

// DetectorConfig tunes the drain event detector. Zero values are not
// useful defaults; build one from config.Tuning.
type DetectorConfig struct {
	// NegativeRateThreshold is the rate of change (litres/min, negative)
	// below which a reading opens a drain. More negative = stricter.
	NegativeRateThreshold float64
	// CloseRateTolerance is the rate at or above which a drain closes.
	// Rates below it (still falling, or only mildly recovering) extend
	// the drain window instead of closing it on a noisy blip.
	CloseRateTolerance float64
	// MinDrainVolume discards candidate events whose compensated
	// collected volume falls below it. Small dips are sensor noise, not
	// collections.
	MinDrainVolume float64
	// EmitOpenDrain controls the series-end boundary: when true a drain
	// still in progress at the last reading is closed there and emitted;
	// when false it is discarded as truncated.
	EmitOpenDrain bool
}

// DetectDrains runs the two-state detector over one normalized series.
//
// The detector walks consecutive rate-of-change values. A rate below
// NegativeRateThreshold opens a drain at the prior reading; the drain
// stays open while rates remain below CloseRateTolerance and closes once
// a rate recovers to or above it, ending at the last falling reading. On
// close, the level drop is
// compensated for the potion the cauldron kept generating during the
// drain:
//
//	collected = (levelBefore - levelAfter) + fillRate * drainMinutes
//
// Ignoring the concurrent refill would undercount every collection by
// exactly that refill amount.
//
// A series with fewer than two readings produces no events.
func DetectDrains(s *Series, rate FillRate, cfg DetectorConfig) []DrainEvent {
	if s == nil || s.Len() < 2 {
		return nil
	}

	var events []DrainEvent
	draining := false
	var start LevelReading // reading the drain opened from

	closeAt := func(r LevelReading) {
		draining = false
		ev := DrainEvent{
			CauldronID:   s.CauldronID,
			Start:        start.Timestamp,
			End:          r.Timestamp,
			LevelBefore:  start.Level,
			LevelAfter:   r.Level,
			FillRateUsed: rate.PerMinute,
		}
		generated := rate.PerMinute * ev.DurationMinutes()
		ev.Collected = (ev.LevelBefore - ev.LevelAfter) + generated
		if ev.Collected < cfg.MinDrainVolume {
			return
		}
		events = append(events, ev)
	}

	for i := 1; i < len(s.Readings); i++ {
		prev, cur := s.Readings[i-1], s.Readings[i]
		dt := cur.Timestamp.Sub(prev.Timestamp).Minutes()
		if dt <= 0 {
			continue
		}
		roc := (cur.Level - prev.Level) / dt

		if !draining {
			if roc < cfg.NegativeRateThreshold {
				draining = true
				start = prev
			}
			continue
		}
		if roc >= cfg.CloseRateTolerance {
			// The drain ended at the last falling reading; cur is the
			// first recovery sample and belongs to the next fill.
			closeAt(prev)
		}
	}

	// Drain still open when the data ran out: close at the last reading
	// unless configured to treat boundary drains as truncated.
	if draining && cfg.EmitOpenDrain {
		closeAt(s.Last())
	}
	return events
}
