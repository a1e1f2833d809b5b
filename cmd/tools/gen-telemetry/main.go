// Command gen-telemetry seeds the database with a synthetic snapshot so
// the pipeline and dashboard can be exercised without the remote API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/greywick-data/potionflow/internal/db"
	"github.com/greywick-data/potionflow/internal/potion"
)

func main() {
	dbFile := flag.String("db", "potionflow.db", "path to the SQLite database")
	migrationsDir := flag.String("migrations", "migrations", "path to the migrations directory")
	cauldrons := flag.Int("n", 6, "number of cauldrons")
	days := flag.Int("days", 3, "days of telemetry to generate")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	snap := generate(*cauldrons, *days, rand.New(rand.NewSource(*seed)))
	id, err := database.SaveSnapshot(context.Background(), snap)
	if err != nil {
		log.Fatalf("failed to store snapshot: %v", err)
	}
	log.Printf("✓ Seeded snapshot %s: %d readings, %d tickets, %d cauldrons",
		id, len(snap.Readings), len(snap.Tickets), len(snap.Cauldrons))
}

// generate builds a plausible snapshot: each cauldron fills at a steady
// per-cauldron rate with small noise, drains roughly once a day, and
// most drains get a mostly-honest ticket.
func generate(n, days int, rng *rand.Rand) *potion.Snapshot {
	start := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Truncate(time.Hour)
	snap := &potion.Snapshot{
		TravelTimes: make(map[string]float64, n),
		FetchedAt:   time.Now().UTC(),
	}

	couriers := []string{"courier_morgana", "courier_edwin", "courier_thessaly"}
	ticketSeq := 0

	for i := 0; i < n; i++ {
		id := string(rune('a'+i%26)) + "_cauldron"
		if i >= 26 {
			id = string(rune('a'+i%26)) + "2_cauldron"
		}
		capacity := 800 + rng.Float64()*600
		fillRate := 0.5 + rng.Float64()*2.5 // L/min
		travel := 20 + rng.Float64()*100    // minutes

		snap.Cauldrons = append(snap.Cauldrons, potion.CauldronMeta{
			ID:        id,
			Name:      id,
			Capacity:  capacity,
			Latitude:  30 + rng.Float64(),
			Longitude: -97 - rng.Float64(),
		})
		snap.TravelTimes[id] = travel

		level := capacity * 0.3
		step := 10 * time.Minute
		nextDrain := start.Add(time.Duration(6+rng.Intn(18)) * time.Hour)
		for ts := start; ts.Before(snap.FetchedAt); ts = ts.Add(step) {
			if ts.After(nextDrain) && level > 250 {
				// Drain over ~3 readings while the cauldron keeps filling.
				drained := 150 + rng.Float64()*math.Min(level-100, 300)
				perStep := drained / 3
				drainEnd := ts
				for k := 0; k < 3; k++ {
					level = level - perStep + fillRate*step.Minutes()
					snap.Readings = append(snap.Readings, potion.LevelReading{
						CauldronID: id, Timestamp: ts, Level: level,
					})
					drainEnd = ts
					ts = ts.Add(step)
				}
				nextDrain = ts.Add(time.Duration(18+rng.Intn(12)) * time.Hour)

				// Most collections are reported honestly; some skim.
				if rng.Float64() < 0.9 {
					reported := drained
					if rng.Float64() < 0.2 {
						reported *= 0.85 + rng.Float64()*0.1
					}
					ticketSeq++
					snap.Tickets = append(snap.Tickets, potion.Ticket{
						TicketID:   fmt.Sprintf("t-%s-%03d", id, ticketSeq),
						CauldronID: id,
						CourierID:  couriers[rng.Intn(len(couriers))],
						Reported:   drainEnd.Add(time.Duration(travel) * time.Minute),
						Volume:     reported,
					})
				}
				continue
			}
			level = math.Min(capacity, level+fillRate*step.Minutes()+rng.NormFloat64()*0.5)
			snap.Readings = append(snap.Readings, potion.LevelReading{
				CauldronID: id, Timestamp: ts, Level: level,
			})
		}
	}
	return snap
}
