// Package report renders static artefacts from pipeline results.
package report

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/greywick-data/potionflow/internal/fetch"
	"github.com/greywick-data/potionflow/internal/potion"
)

// RenderNetworkMap draws the delivery network as a PNG: cauldron nodes
// at their coordinates, the market node, and graph edges between any
// nodes with known positions. network may be nil, in which case only the
// cauldrons are drawn.
func RenderNetworkMap(cauldrons []potion.CauldronMeta, network *fetch.Network) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Delivery Network"
	p.X.Label.Text = "longitude"
	p.Y.Label.Text = "latitude"

	positions := make(map[string][2]float64, len(cauldrons)+1)
	cauldronXYs := make(plotter.XYs, 0, len(cauldrons))
	for _, c := range cauldrons {
		positions[c.ID] = [2]float64{c.Longitude, c.Latitude}
		cauldronXYs = append(cauldronXYs, plotter.XY{X: c.Longitude, Y: c.Latitude})
	}

	if network != nil && network.Market != nil {
		positions[network.Market.ID] = [2]float64{network.Market.Longitude, network.Market.Latitude}
	}

	// Edges first so nodes draw on top of them.
	if network != nil {
		for _, e := range network.Edges {
			from, okFrom := positions[e.From]
			to, okTo := positions[e.To]
			if !okFrom || !okTo {
				continue
			}
			line, err := plotter.NewLine(plotter.XYs{
				{X: from[0], Y: from[1]},
				{X: to[0], Y: to[1]},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to build edge line: %w", err)
			}
			line.Color = color.Gray{Y: 200}
			p.Add(line)
		}
	}

	scatter, err := plotter.NewScatter(cauldronXYs)
	if err != nil {
		return nil, fmt.Errorf("failed to build cauldron scatter: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(4)
	scatter.GlyphStyle.Color = color.RGBA{R: 90, G: 60, B: 160, A: 255}
	p.Add(scatter)
	p.Legend.Add("cauldron", scatter)

	if network != nil && network.Market != nil {
		marketXY := plotter.XYs{{X: network.Market.Longitude, Y: network.Market.Latitude}}
		market, err := plotter.NewScatter(marketXY)
		if err != nil {
			return nil, fmt.Errorf("failed to build market scatter: %w", err)
		}
		market.GlyphStyle.Shape = draw.PyramidGlyph{}
		market.GlyphStyle.Radius = vg.Points(6)
		market.GlyphStyle.Color = color.RGBA{R: 200, G: 120, B: 30, A: 255}
		p.Add(market)
		p.Legend.Add("market", market)
	}

	wt, err := p.WriterTo(7*vg.Inch, 7*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to build png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write png: %w", err)
	}
	return buf.Bytes(), nil
}
