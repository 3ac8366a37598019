package expr

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// ScalarFunc is applied element-wise over its argument columns.
type ScalarFunc func(args []float64) float64

// VectorFunc receives whole argument columns and returns a result column of the same length.
type VectorFunc func(ctx context.Context, args [][]float64) ([]float64, error)

// Function is an allow-listed callable. Exactly one of Scalar or Vector is set.
// MaxArgs < 0 means variadic.
type Function struct {
	Name    string
	MinArgs int
	MaxArgs int
	Scalar  ScalarFunc
	Vector  VectorFunc
}

// Registry is the allow-list of functions and constants visible to expressions.
type Registry struct {
	funcs  map[string]Function
	consts map[string]float64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs:  make(map[string]Function),
		consts: make(map[string]float64),
	}
}

// DefaultRegistry returns a registry holding the math function set and constants.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterMath(r)
	return r
}

// Register adds a function. Registering the same name twice is an error.
func (r *Registry) Register(f Function) error {
	if f.Name == "" {
		return fmt.Errorf("function name is required")
	}
	if (f.Scalar == nil) == (f.Vector == nil) {
		return fmt.Errorf("function %s: exactly one of Scalar or Vector must be set", f.Name)
	}
	if _, exists := r.funcs[f.Name]; exists {
		return fmt.Errorf("function %s already registered", f.Name)
	}
	if _, exists := r.consts[f.Name]; exists {
		return fmt.Errorf("function %s shadows a constant", f.Name)
	}
	r.funcs[f.Name] = f
	return nil
}

// MustRegister is Register that panics, for static allow-lists.
func (r *Registry) MustRegister(f Function) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// SetConstant defines a named constant.
func (r *Registry) SetConstant(name string, v float64) {
	r.consts[name] = v
}

// Function looks up a function by name.
func (r *Registry) Function(name string) (Function, bool) {
	f, ok := r.funcs[name]
	return f, ok
}

// Constant looks up a constant by name.
func (r *Registry) Constant(name string) (float64, bool) {
	v, ok := r.consts[name]
	return v, ok
}

// Names returns every function name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unary(name string, fn func(float64) float64) Function {
	return Function{Name: name, MinArgs: 1, MaxArgs: 1, Scalar: func(a []float64) float64 { return fn(a[0]) }}
}

func binary(name string, fn func(float64, float64) float64) Function {
	return Function{Name: name, MinArgs: 2, MaxArgs: 2, Scalar: func(a []float64) float64 { return fn(a[0], a[1]) }}
}

// RegisterMath adds the standard math function set and the pi and e constants.
func RegisterMath(r *Registry) {
	for _, f := range []Function{
		unary("acos", math.Acos),
		unary("asin", math.Asin),
		unary("atan", math.Atan),
		binary("atan2", math.Atan2),
		unary("ceil", math.Ceil),
		unary("cos", math.Cos),
		unary("cosh", math.Cosh),
		unary("degrees", func(x float64) float64 { return x * 180 / math.Pi }),
		unary("exp", math.Exp),
		unary("fabs", math.Abs),
		unary("floor", math.Floor),
		binary("fmod", math.Mod),
		binary("hypot", math.Hypot),
		binary("ldexp", func(x, i float64) float64 { return math.Ldexp(x, int(i)) }),
		{Name: "log", MinArgs: 1, MaxArgs: 2, Scalar: func(a []float64) float64 {
			if len(a) == 2 {
				return math.Log(a[0]) / math.Log(a[1])
			}
			return math.Log(a[0])
		}},
		unary("log10", math.Log10),
		binary("pow", math.Pow),
		unary("radians", func(x float64) float64 { return x * math.Pi / 180 }),
		unary("sin", math.Sin),
		unary("sinh", math.Sinh),
		unary("sqrt", math.Sqrt),
		unary("tan", math.Tan),
		unary("tanh", math.Tanh),
	} {
		r.MustRegister(f)
	}
	r.SetConstant("pi", math.Pi)
	r.SetConstant("e", math.E)
}
