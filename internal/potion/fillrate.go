package potion

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// EstimateFillRate returns the steady-state fill rate for one cauldron.
//
// It computes the rate of change between consecutive readings and keeps
// only the positive rates (filling intervals); drains and level resets
// show up as negative steps and are excluded. The estimate is the median
// of the positive rates, which a handful of outlier intervals cannot
// drag the way they would a mean.
//
// A series with readings but no positive step returns defaultRate (the
// cauldron never filled while observed). An empty series returns
// ErrInsufficientData.
func EstimateFillRate(s *Series, defaultRate float64) (FillRate, error) {
	if s == nil || s.Len() == 0 {
		id := ""
		if s != nil {
			id = s.CauldronID
		}
		return FillRate{}, fmt.Errorf("cauldron %s: %w", id, ErrInsufficientData)
	}

	var rates []float64
	for i := 1; i < len(s.Readings); i++ {
		prev, cur := s.Readings[i-1], s.Readings[i]
		dt := cur.Timestamp.Sub(prev.Timestamp).Minutes()
		if dt <= 0 {
			continue
		}
		if dl := cur.Level - prev.Level; dl > 0 {
			rates = append(rates, dl/dt)
		}
	}

	perMin := defaultRate
	if len(rates) > 0 {
		sort.Float64s(rates)
		perMin = stat.Quantile(0.5, stat.LinInterp, rates, nil)
	}
	return FillRate{
		CauldronID: s.CauldronID,
		PerMinute:  perMin,
		PerHour:    perMin * 60,
	}, nil
}
