// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"testing"
	"time"

	"github.com/greywick-data/potionflow/internal/potion"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// T0 is the base timestamp used by synthetic series fixtures.
var T0 = time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

// Readings builds a level series for one cauldron from (minute, level)
// pairs relative to T0.
func Readings(cauldronID string, points ...[2]float64) []potion.LevelReading {
	out := make([]potion.LevelReading, 0, len(points))
	for _, p := range points {
		out = append(out, potion.LevelReading{
			CauldronID: cauldronID,
			Timestamp:  T0.Add(time.Duration(p[0] * float64(time.Minute))),
			Level:      p[1],
		})
	}
	return out
}
