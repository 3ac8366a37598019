package seawater

import (
	"context"
	"math"

	"github.com/leapstack-labs/cruiseqc/internal/expr"
)

func fn1(name string, f func(float64) float64) expr.Function {
	return expr.Function{Name: name, MinArgs: 1, MaxArgs: 1, Scalar: func(a []float64) float64 { return f(a[0]) }}
}

func fn2(name string, f func(float64, float64) float64) expr.Function {
	return expr.Function{Name: name, MinArgs: 2, MaxArgs: 2, Scalar: func(a []float64) float64 { return f(a[0], a[1]) }}
}

func fn3(name string, f func(float64, float64, float64) float64) expr.Function {
	return expr.Function{Name: name, MinArgs: 3, MaxArgs: 3, Scalar: func(a []float64) float64 { return f(a[0], a[1], a[2]) }}
}

func fn4(name string, f func(float64, float64, float64, float64) float64) expr.Function {
	return expr.Function{Name: name, MinArgs: 4, MaxArgs: 4, Scalar: func(a []float64) float64 { return f(a[0], a[1], a[2], a[3]) }}
}

// Register adds the seawater routines and the pressure/depth combiners to r.
func Register(r *expr.Registry) error {
	for _, f := range []expr.Function{
		fn1("T68conv", T68conv),
		fn1("T90conv", T90conv),
		fn1("smow", Smow),
		fn2("dens0", Dens0),
		fn3("seck", Seck),
		fn3("dens", Dens),
		fn4("pden", Pden),
		fn4("ptmp", Ptmp),
		fn3("adtg", Adtg),
		fn2("pres", Pres),
		fn2("dpth", Dpth),
		fn1("g", G),
		fn1("f", F),
		fn2("fp", Fp),
		fn2("satO2", SatO2),
		fn2("satN2", SatN2),
		fn2("satAr", SatAr),
		{Name: "pressure_combined", MinArgs: 3, MaxArgs: 3, Vector: pressureCombined},
		{Name: "depth_combined", MinArgs: 3, MaxArgs: 3, Vector: depthCombined},
	} {
		if err := r.Register(f); err != nil {
			return err
		}
	}
	return nil
}

// pressureCombined(CTDPRS, DEPTH, LATITUDE) keeps measured pressure and fills gaps
// from depth.
func pressureCombined(_ context.Context, args [][]float64) ([]float64, error) {
	return fillFrom(args[0], args[1], args[2], Pres), nil
}

// depthCombined(DEPTH, CTDPRS, LATITUDE) keeps measured depth and fills gaps from pressure.
func depthCombined(_ context.Context, args [][]float64) ([]float64, error) {
	return fillFrom(args[0], args[1], args[2], Dpth), nil
}

func fillFrom(primary, other, lat []float64, convert func(v, lat float64) float64) []float64 {
	out := make([]float64, len(primary))
	for i, v := range primary {
		if !math.IsNaN(v) {
			out[i] = v
			continue
		}
		out[i] = convert(other[i], lat[i])
	}
	return out
}
