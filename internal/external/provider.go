// Package external bridges computed-parameter expressions to numeric functions that
// run outside the sandbox: an octave process or user-supplied Starlark files. Every
// call is bounded by a timeout and reports ExternalComputationTimeout when it expires.
package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/cruiseqc/internal/expr"
)

// DefaultTimeout bounds a single external call when none is configured.
const DefaultTimeout = 30 * time.Second

// ExternalComputationTimeout is returned when an external function exceeds its bound.
type ExternalComputationTimeout struct {
	Function string
	Timeout  time.Duration
}

func (e *ExternalComputationTimeout) Error() string {
	return fmt.Sprintf("external function %s timed out after %s", e.Function, e.Timeout)
}

// IsTimeout reports whether err is (or wraps) an ExternalComputationTimeout.
func IsTimeout(err error) bool {
	var t *ExternalComputationTimeout
	return errors.As(err, &t)
}

// FunctionSpec describes one external function. MaxArgs < 0 means variadic.
type FunctionSpec struct {
	Name    string `koanf:"name" yaml:"name"`
	MinArgs int    `koanf:"min_args" yaml:"min_args"`
	MaxArgs int    `koanf:"max_args" yaml:"max_args"`
}

// Provider evaluates functions over whole columns.
type Provider interface {
	Name() string
	Functions() []FunctionSpec
	Call(ctx context.Context, name string, args [][]float64) ([]float64, error)
}

// Register exposes every function of p in r, each call bounded by timeout.
func Register(r *expr.Registry, p Provider, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	for _, spec := range p.Functions() {
		name := spec.Name
		err := r.Register(expr.Function{
			Name:    name,
			MinArgs: spec.MinArgs,
			MaxArgs: spec.MaxArgs,
			Vector: func(ctx context.Context, args [][]float64) ([]float64, error) {
				return callWithTimeout(ctx, p, name, args, timeout)
			},
		})
		if err != nil {
			return fmt.Errorf("%s provider: %w", p.Name(), err)
		}
	}
	return nil
}

func callWithTimeout(ctx context.Context, p Provider, name string, args [][]float64, timeout time.Duration) ([]float64, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := p.Call(cctx, name, args)
	if ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return nil, &ExternalComputationTimeout{Function: name, Timeout: timeout}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
