// Package fetch retrieves telemetry snapshots from the remote potion
// market API. The pipeline core treats this package as its data
// retrieval collaborator: fetch failures are fatal to the run and retry
// policy lives with the caller, not here.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/greywick-data/potionflow/internal/monitoring"
	"github.com/greywick-data/potionflow/internal/potion"
	"github.com/greywick-data/potionflow/internal/units"
)

// Client fetches data from the potion market API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the given base URL with a 30 second
// request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Edge is one directed connection in the delivery network graph. Cost is
// a clock duration in HH:MM:SS form.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Cost string `json:"cost"`
}

// Market describes the market node, used for map rendering.
type Market struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Courier is a registered transport courier.
type Courier struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Network bundles the reference data that is not part of the analysis
// snapshot proper but feeds the map and courier reports.
type Network struct {
	Edges    []Edge    `json:"edges"`
	Market   *Market   `json:"market"`
	Couriers []Courier `json:"couriers"`
}

type levelRecord struct {
	Timestamp      string             `json:"timestamp"`
	CauldronLevels map[string]float64 `json:"cauldron_levels"`
}

type ticketRecord struct {
	TicketID        string  `json:"ticket_id"`
	CauldronID      string  `json:"cauldron_id"`
	CourierID       string  `json:"courier_id"`
	Date            string  `json:"date"`
	AmountCollected float64 `json:"amount_collected"`
}

// getJSON fetches one endpoint and decodes into v.
func (c *Client) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: unexpected status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", endpoint, err)
	}
	return nil
}

// decodeList handles endpoints that return either a bare JSON array or
// an object wrapping the array under a named key.
func decodeList(raw json.RawMessage, key string, v interface{}) error {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(raw, v)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return err
	}
	inner, ok := wrapper[key]
	if !ok {
		return fmt.Errorf("response object has no %q key", key)
	}
	return json.Unmarshal(inner, v)
}

// timestampLayouts lists the formats the API has been observed to emit.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// FetchLevels retrieves the full level history, flattened to one reading
// per cauldron per sample. Records with unparseable timestamps are
// skipped and counted, never fatal.
func (c *Client) FetchLevels(ctx context.Context) ([]potion.LevelReading, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/Data/?start_date=0&end_date=2000000000", &raw); err != nil {
		return nil, err
	}
	var records []levelRecord
	if err := decodeList(raw, "data", &records); err != nil {
		return nil, fmt.Errorf("failed to decode level data: %w", err)
	}

	var readings []potion.LevelReading
	skipped := 0
	for _, rec := range records {
		ts, err := parseTimestamp(rec.Timestamp)
		if err != nil {
			skipped++
			monitoring.Debugf("fetch: skipping level record with timestamp %q", rec.Timestamp)
			continue
		}
		for id, level := range rec.CauldronLevels {
			readings = append(readings, potion.LevelReading{
				CauldronID: id,
				Timestamp:  ts,
				Level:      level,
			})
		}
	}
	if skipped > 0 {
		monitoring.Logf("fetch: skipped %d level records with unparseable timestamps", skipped)
	}
	return readings, nil
}

// FetchTickets retrieves all transport tickets. Tickets with unparseable
// dates or negative volumes are skipped and counted.
func (c *Client) FetchTickets(ctx context.Context) ([]potion.Ticket, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/Tickets", &raw); err != nil {
		return nil, err
	}
	var records []ticketRecord
	if err := decodeList(raw, "transport_tickets", &records); err != nil {
		return nil, fmt.Errorf("failed to decode tickets: %w", err)
	}

	var tickets []potion.Ticket
	skipped := 0
	for _, rec := range records {
		ts, err := parseTimestamp(rec.Date)
		if err != nil || rec.AmountCollected < 0 {
			skipped++
			monitoring.Debugf("fetch: skipping ticket %s (date %q, amount %.2f)", rec.TicketID, rec.Date, rec.AmountCollected)
			continue
		}
		tickets = append(tickets, potion.Ticket{
			TicketID:   rec.TicketID,
			CauldronID: rec.CauldronID,
			CourierID:  rec.CourierID,
			Reported:   ts,
			Volume:     rec.AmountCollected,
		})
	}
	if skipped > 0 {
		monitoring.Logf("fetch: skipped %d malformed tickets", skipped)
	}
	return tickets, nil
}

// FetchCauldrons retrieves static cauldron metadata.
func (c *Client) FetchCauldrons(ctx context.Context) ([]potion.CauldronMeta, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/Information/cauldrons", &raw); err != nil {
		return nil, err
	}
	var cauldrons []potion.CauldronMeta
	if err := decodeList(raw, "cauldrons", &cauldrons); err != nil {
		return nil, fmt.Errorf("failed to decode cauldrons: %w", err)
	}
	return cauldrons, nil
}

// FetchTravelTimes derives per-cauldron travel time to market from each
// cauldron's outgoing graph edges. A cauldron without a market edge is
// simply absent from the result.
func (c *Client) FetchTravelTimes(ctx context.Context, cauldronIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(cauldronIDs))
	for _, id := range cauldronIDs {
		var neighbors []Edge
		if err := c.getJSON(ctx, "/api/Information/graph/neighbors/"+id, &neighbors); err != nil {
			return nil, err
		}
		for _, e := range neighbors {
			if !strings.HasPrefix(e.To, "market") {
				continue
			}
			minutes, err := units.ParseClockCost(e.Cost)
			if err != nil {
				monitoring.Logf("fetch: skipping edge %s->%s: %v", id, e.To, err)
				continue
			}
			out[id] = minutes
			break
		}
	}
	return out, nil
}

// FetchNetwork retrieves the delivery graph, market info and courier
// roster used by map rendering and reporting.
func (c *Client) FetchNetwork(ctx context.Context) (*Network, error) {
	var netRaw struct {
		Edges []Edge `json:"edges"`
	}
	if err := c.getJSON(ctx, "/api/Information/network", &netRaw); err != nil {
		return nil, err
	}
	var market Market
	if err := c.getJSON(ctx, "/api/Information/market", &market); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/Information/couriers", &raw); err != nil {
		return nil, err
	}
	var couriers []Courier
	if err := decodeList(raw, "couriers", &couriers); err != nil {
		return nil, fmt.Errorf("failed to decode couriers: %w", err)
	}
	return &Network{Edges: netRaw.Edges, Market: &market, Couriers: couriers}, nil
}

// FetchSnapshot assembles one immutable analysis snapshot from all the
// record streams the pipeline needs.
func (c *Client) FetchSnapshot(ctx context.Context) (*potion.Snapshot, error) {
	readings, err := c.FetchLevels(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := c.FetchTickets(ctx)
	if err != nil {
		return nil, err
	}
	cauldrons, err := c.FetchCauldrons(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(cauldrons))
	for _, m := range cauldrons {
		ids = append(ids, m.ID)
	}
	travel, err := c.FetchTravelTimes(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &potion.Snapshot{
		Readings:    readings,
		Tickets:     tickets,
		Cauldrons:   cauldrons,
		TravelTimes: travel,
		FetchedAt:   time.Now().UTC(),
	}, nil
}
