package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/greywick-data/potionflow/internal/db"
	"github.com/greywick-data/potionflow/internal/potion"
	"github.com/greywick-data/potionflow/internal/report"
)

// chartLevels renders the level timeline for one cauldron with detected
// drains overlaid as scatter points. Query params:
//   - cauldron_id (required)
func (s *Server) chartLevels(w http.ResponseWriter, r *http.Request) {
	cauldronID := r.URL.Query().Get("cauldron_id")
	if cauldronID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "cauldron_id is required")
		return
	}

	_, snap, err := s.db.LatestSnapshot(r.Context())
	if errors.Is(err, db.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "no snapshot stored yet")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	res, ok := s.latest(w, r)
	if !ok {
		return
	}

	series := potion.Normalize(snap.Readings)[cauldronID]
	if series == nil || series.Len() == 0 {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no readings for cauldron %s", cauldronID))
		return
	}

	timestamps := make([]string, 0, series.Len())
	levels := make([]opts.LineData, 0, series.Len())
	for _, reading := range series.Readings {
		timestamps = append(timestamps, reading.Timestamp.Format("2006-01-02 15:04"))
		levels = append(levels, opts.LineData{Value: reading.Level})
	}

	drainPoints := make([]opts.ScatterData, 0)
	for _, d := range res.Drains {
		if d.CauldronID != cauldronID {
			continue
		}
		drainPoints = append(drainPoints, opts.ScatterData{
			Value: []interface{}{d.End.Format("2006-01-02 15:04"), d.LevelAfter},
		})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Cauldron Levels", Theme: "dark", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Cauldron %s", cauldronID),
			Subtitle: fmt.Sprintf("%d readings, %d drains detected", series.Len(), len(drainPoints)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Level (L)"}),
	)
	line.SetXAxis(timestamps)
	line.AddSeries("level", levels, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))

	scatter := charts.NewScatter()
	scatter.AddSeries("drain end", drainPoints, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	line.Overlap(scatter)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
	}
}

// chartRisk renders hours-to-overflow per cauldron as a bar chart,
// most urgent first. Cauldrons with no risk are excluded.
func (s *Server) chartRisk(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w, r)
	if !ok {
		return
	}

	risks := make([]potion.OverflowRisk, 0, len(res.Risks))
	for _, risk := range res.Risks {
		if risk.Tier != potion.RiskNone {
			risks = append(risks, risk)
		}
	}
	sort.SliceStable(risks, func(i, j int) bool {
		return risks[i].HoursToOverflow < risks[j].HoursToOverflow
	})

	names := make([]string, 0, len(risks))
	hours := make([]opts.BarData, 0, len(risks))
	for _, risk := range risks {
		names = append(names, risk.CauldronID)
		hours = append(hours, opts.BarData{Value: risk.HoursToOverflow, Name: string(risk.Tier)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Overflow Risk", Theme: "dark", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Hours to Overflow", Subtitle: "most urgent first"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "hours"}),
	)
	bar.SetXAxis(names)
	bar.AddSeries("hours_to_overflow", hours)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := bar.Render(w); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
	}
}

// renderMap draws the delivery network map as a PNG: cauldrons at their
// coordinates sized by utilization, the market, and the graph edges.
func (s *Server) renderMap(w http.ResponseWriter, r *http.Request) {
	_, snap, err := s.db.LatestSnapshot(r.Context())
	if errors.Is(err, db.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "no snapshot stored yet")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	png, err := report.RenderNetworkMap(snap.Cauldrons, s.network)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render map: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
