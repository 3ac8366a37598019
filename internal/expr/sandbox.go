// Package expr is the restricted formula language used by computed parameters.
//
// An equation is first expanded by textual substitution of ${NAME} references with
// the referenced definition's own equation, then parsed once into a small AST.
// Every bare identifier must resolve to a dataset column or an allow-listed
// constant, and every call to an allow-listed function; nothing else is visible.
// Evaluation is column-wise over float64 vectors with NaN standing for null.
package expr

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
)

// maxExpandedLength bounds reference expansion so mutual references cannot blow up memory.
const maxExpandedLength = 1 << 20

var refPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// Env exposes dataset columns to an evaluation.
type Env interface {
	Len() int
	HasColumn(name string) bool
	Column(name string) ([]float64, error)
}

// Sandbox compiles and evaluates expressions against an allow-list.
type Sandbox struct {
	registry *Registry
}

// NewSandbox creates a sandbox over registry. A nil registry means DefaultRegistry().
func NewSandbox(registry *Registry) *Sandbox {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Sandbox{registry: registry}
}

// Registry returns the allow-list in use.
func (s *Sandbox) Registry() *Registry {
	return s.registry
}

// References returns the sorted, unique ${NAME} references in equation.
func References(equation string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range refPattern.FindAllStringSubmatch(equation, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	sort.Strings(out)
	return out
}

// Substitute replaces every ${NAME} with "(" + defs[NAME] + ")" until none remain.
// It gives up after len(defs)+1 passes with a CyclicReferenceError.
func Substitute(equation string, defs map[string]string) (string, error) {
	bound := len(defs) + 1
	out := equation
	for pass := 0; pass < bound; pass++ {
		refs := References(out)
		if len(refs) == 0 {
			return out, nil
		}
		for _, name := range refs {
			if _, ok := defs[name]; !ok {
				return "", &UnknownParameterReference{Name: name}
			}
		}
		out = refPattern.ReplaceAllStringFunc(out, func(m string) string {
			return "(" + defs[m[2:len(m)-1]] + ")"
		})
		if len(out) > maxExpandedLength {
			return "", &CyclicReferenceError{Remaining: References(out), Passes: pass + 1}
		}
	}
	if refs := References(out); len(refs) > 0 {
		return "", &CyclicReferenceError{Remaining: refs, Passes: bound}
	}
	return out, nil
}

// Program is a parsed and validated expression.
type Program struct {
	Source  string
	Columns []string
	Calls   []string

	root     Node
	registry *Registry
}

// Compile parses expression and checks every identifier against env and the
// allow-list. All unknown identifiers are reported together.
func (s *Sandbox) Compile(expression string, env Env) (*Program, error) {
	root, err := Parse(expression)
	if err != nil {
		return nil, err
	}
	idents, calls := Identifiers(root)

	var unknown, columns []string
	for _, id := range idents {
		switch {
		case env.HasColumn(id):
			columns = append(columns, id)
		case s.isConstant(id):
		default:
			unknown = append(unknown, id)
		}
	}
	for _, c := range calls {
		if _, ok := s.registry.Function(c); !ok {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &UnknownIdentifierError{Tokens: unknown}
	}

	var argErr error
	Walk(root, func(n Node) {
		call, ok := n.(*CallExpr)
		if !ok || argErr != nil {
			return
		}
		fn, _ := s.registry.Function(call.Name)
		got := len(call.Args)
		if got < fn.MinArgs || (fn.MaxArgs >= 0 && got > fn.MaxArgs) {
			argErr = &ArgumentError{Function: call.Name, Got: got, Min: fn.MinArgs, Max: fn.MaxArgs}
		}
	})
	if argErr != nil {
		return nil, argErr
	}

	return &Program{
		Source:   expression,
		Columns:  columns,
		Calls:    calls,
		root:     root,
		registry: s.registry,
	}, nil
}

func (s *Sandbox) isConstant(name string) bool {
	_, ok := s.registry.Constant(name)
	return ok
}

// Evaluate substitutes references, compiles and evaluates equation in one step.
func (s *Sandbox) Evaluate(ctx context.Context, equation string, env Env, defs map[string]string) ([]float64, error) {
	expanded, err := Substitute(equation, defs)
	if err != nil {
		return nil, err
	}
	prog, err := s.Compile(expanded, env)
	if err != nil {
		return nil, err
	}
	return prog.Eval(ctx, env)
}

// Eval evaluates the program over env and returns one value per row.
func (p *Program) Eval(ctx context.Context, env Env) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ev := &evaluator{ctx: ctx, env: env, n: env.Len(), registry: p.registry, cols: map[string][]float64{}}
	return ev.eval(p.root)
}

type evaluator struct {
	ctx      context.Context
	env      Env
	n        int
	registry *Registry
	cols     map[string][]float64
}

func (ev *evaluator) eval(node Node) ([]float64, error) {
	switch n := node.(type) {
	case *NumberLit:
		return ev.fill(n.Value), nil

	case *Ident:
		if ev.env.HasColumn(n.Name) {
			return ev.column(n.Name)
		}
		v, _ := ev.registry.Constant(n.Name)
		return ev.fill(v), nil

	case *UnaryExpr:
		x, err := ev.eval(n.Operand)
		if err != nil {
			return nil, err
		}
		out := make([]float64, ev.n)
		for i := range out {
			if n.Op == TokenMinus {
				out[i] = -x[i]
			} else {
				out[i] = x[i]
			}
		}
		return out, nil

	case *BinaryExpr:
		l, err := ev.eval(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := ev.eval(n.Right)
		if err != nil {
			return nil, err
		}
		op := binaryOps[n.Op]
		out := make([]float64, ev.n)
		for i := range out {
			out[i] = op(l[i], r[i])
		}
		return out, nil

	case *CallExpr:
		return ev.call(n)
	}
	return nil, NewParseErrorf(node.Pos(), "unsupported node %T", node)
}

func (ev *evaluator) call(n *CallExpr) ([]float64, error) {
	fn, _ := ev.registry.Function(n.Name)
	args := make([][]float64, len(n.Args))
	for i, a := range n.Args {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if fn.Vector != nil {
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		out, err := fn.Vector(ev.ctx, args)
		if err != nil {
			if IsEvaluationError(err) {
				return nil, err
			}
			return nil, &FunctionError{Function: n.Name, Err: err}
		}
		if len(out) != ev.n {
			return nil, &FunctionError{
				Function: n.Name,
				Err:      fmt.Errorf("returned %d values for %d rows", len(out), ev.n),
			}
		}
		return out, nil
	}

	out := make([]float64, ev.n)
	row := make([]float64, len(args))
	for i := range out {
		for j := range args {
			row[j] = args[j][i]
		}
		out[i] = fn.Scalar(row)
	}
	return out, nil
}

func (ev *evaluator) column(name string) ([]float64, error) {
	if c, ok := ev.cols[name]; ok {
		return c, nil
	}
	c, err := ev.env.Column(name)
	if err != nil {
		return nil, &ColumnTypeError{Column: name}
	}
	ev.cols[name] = c
	return c, nil
}

func (ev *evaluator) fill(v float64) []float64 {
	out := make([]float64, ev.n)
	for i := range out {
		out[i] = v
	}
	return out
}

var binaryOps = map[TokenType]func(a, b float64) float64{
	TokenPlus:    func(a, b float64) float64 { return a + b },
	TokenMinus:   func(a, b float64) float64 { return a - b },
	TokenStar:    func(a, b float64) float64 { return a * b },
	TokenSlash:   func(a, b float64) float64 { return a / b },
	TokenPercent: floorMod,
	TokenPower:   math.Pow,
}

// floorMod takes the sign of the divisor.
func floorMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// Round rounds every value to precision decimals, half to even. A negative
// precision leaves values untouched.
func Round(values []float64, precision int) []float64 {
	out := make([]float64, len(values))
	if precision < 0 {
		copy(out, values)
		return out
	}
	scale := math.Pow(10, float64(precision))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = v
			continue
		}
		out[i] = math.RoundToEven(v*scale) / scale
	}
	return out
}
