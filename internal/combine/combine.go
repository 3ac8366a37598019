// Package combine decides how two near-duplicate measurement columns (for example
// bottle and CTD salinity) are merged into one series.
//
// The primary column wins outright when its coverage is high enough. Otherwise the
// secondary column fills the gaps, either as-is when the two agree on shared rows
// or through a linear calibration when a regression explains them well enough.
package combine

import (
	"context"
	"fmt"
	"math"

	"github.com/leapstack-labs/cruiseqc/internal/expr"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Thresholds are the decision limits of the heuristic.
type Thresholds struct {
	MinCoverage  float64 `koanf:"min_coverage"`
	MaxDeviation float64 `koanf:"max_deviation"`
	MinRSquared  float64 `koanf:"min_r_squared"`
}

// DefaultThresholds returns 80% coverage, 0.003 mean deviation and 0.99 R².
func DefaultThresholds() Thresholds {
	return Thresholds{MinCoverage: 0.8, MaxDeviation: 0.003, MinRSquared: 0.99}
}

// Validate checks that every threshold is inside its domain.
func (t Thresholds) Validate() error {
	if t.MinCoverage < 0 || t.MinCoverage > 1 {
		return fmt.Errorf("min_coverage must be within [0,1], got %v", t.MinCoverage)
	}
	if t.MaxDeviation < 0 {
		return fmt.Errorf("max_deviation must not be negative, got %v", t.MaxDeviation)
	}
	if t.MinRSquared < 0 || t.MinRSquared > 1 {
		return fmt.Errorf("min_r_squared must be within [0,1], got %v", t.MinRSquared)
	}
	return nil
}

// Strategy is the outcome of Decide.
type Strategy string

// Strategies.
const (
	StrategyPrimary    Strategy = "primary"
	StrategyMerged     Strategy = "merged"
	StrategyCalibrated Strategy = "calibrated"
)

// Decision records the chosen strategy and the statistics behind it.
type Decision struct {
	Strategy      Strategy
	Coverage      float64
	Paired        int
	MeanDeviation float64
	RSquared      float64
	Intercept     float64
	Slope         float64
}

// Decide evaluates the heuristic for primary and secondary, which must be the same length.
func Decide(primary, secondary []float64, th Thresholds) (Decision, error) {
	if len(primary) != len(secondary) {
		return Decision{}, fmt.Errorf("length mismatch: %d vs %d", len(primary), len(secondary))
	}

	var present, primaryPresent int
	var xs, ys, dev []float64
	for i := range primary {
		p, s := !math.IsNaN(primary[i]), !math.IsNaN(secondary[i])
		if p || s {
			present++
		}
		if p {
			primaryPresent++
		}
		if p && s {
			xs = append(xs, secondary[i])
			ys = append(ys, primary[i])
			dev = append(dev, math.Abs(primary[i]-secondary[i]))
		}
	}

	d := Decision{Strategy: StrategyPrimary, Paired: len(xs), MeanDeviation: math.NaN(), RSquared: math.NaN()}
	if present == 0 {
		return d, nil
	}
	d.Coverage = float64(primaryPresent) / float64(present)
	if d.Coverage >= th.MinCoverage || len(xs) == 0 {
		return d, nil
	}

	meanDev, err := stats.Mean(dev)
	if err != nil {
		return d, err
	}
	d.MeanDeviation = meanDev
	if meanDev <= th.MaxDeviation {
		d.Strategy = StrategyMerged
		d.Slope = 1
		return d, nil
	}
	if len(xs) < 2 {
		return d, nil
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	d.Intercept, d.Slope = alpha, beta
	d.RSquared = stat.RSquared(xs, ys, nil, alpha, beta)
	if d.RSquared >= th.MinRSquared {
		d.Strategy = StrategyCalibrated
	}
	return d, nil
}

// Apply builds the combined series for a decision.
func Apply(d Decision, primary, secondary []float64) []float64 {
	out := make([]float64, len(primary))
	for i, p := range primary {
		switch {
		case !math.IsNaN(p) || d.Strategy == StrategyPrimary:
			out[i] = p
		case d.Strategy == StrategyMerged:
			out[i] = secondary[i]
		default:
			out[i] = d.Intercept + d.Slope*secondary[i]
		}
	}
	return out
}

// Register exposes combined(primary, secondary) to expressions.
func Register(r *expr.Registry, th Thresholds) error {
	return r.Register(expr.Function{
		Name:    "combined",
		MinArgs: 2,
		MaxArgs: 2,
		Vector: func(_ context.Context, args [][]float64) ([]float64, error) {
			d, err := Decide(args[0], args[1], th)
			if err != nil {
				return nil, err
			}
			return Apply(d, args[0], args[1]), nil
		},
	})
}
