package potion

import (
	"sort"
)

// Series is the normalized, timestamp-ordered level series for one
// cauldron. Timestamps are strictly increasing after normalization.
type Series struct {
	CauldronID string
	Readings   []LevelReading
	// Skipped counts malformed readings dropped during normalization
	// (zero timestamp or negative level).
	Skipped int
}

// Len returns the number of usable readings.
func (s *Series) Len() int { return len(s.Readings) }

// Last returns the most recent reading. Call only when Len() > 0.
func (s *Series) Last() LevelReading { return s.Readings[len(s.Readings)-1] }

// Normalize groups raw readings by cauldron and produces one ordered
// series per cauldron. Readings are sorted by timestamp; duplicate
// timestamps collapse last-write-wins (the later record in input order
// survives). Malformed readings are skipped and counted, never fatal.
func Normalize(readings []LevelReading) map[string]*Series {
	out := make(map[string]*Series)
	for _, r := range readings {
		s := out[r.CauldronID]
		if s == nil {
			s = &Series{CauldronID: r.CauldronID}
			out[r.CauldronID] = s
		}
		if r.Timestamp.IsZero() || r.Level < 0 {
			s.Skipped++
			continue
		}
		s.Readings = append(s.Readings, r)
	}
	for _, s := range out {
		sort.SliceStable(s.Readings, func(i, j int) bool {
			return s.Readings[i].Timestamp.Before(s.Readings[j].Timestamp)
		})
		s.Readings = dedupe(s.Readings)
	}
	return out
}

// dedupe collapses runs of equal timestamps, keeping the last entry of
// each run. Input must already be sorted; the stable sort preserves input
// order within a run, so "last" is last-write-wins.
func dedupe(rs []LevelReading) []LevelReading {
	if len(rs) < 2 {
		return rs
	}
	out := rs[:0]
	for i, r := range rs {
		if i+1 < len(rs) && rs[i+1].Timestamp.Equal(r.Timestamp) {
			continue
		}
		out = append(out, r)
	}
	return out
}
