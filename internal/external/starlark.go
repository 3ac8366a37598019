package external

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Starlark exposes the top-level functions of *.star files in a directory.
// Functions are applied row by row; a None result becomes null.
type Starlark struct {
	dir      string
	logger   *slog.Logger
	funcs    map[string]*starlark.Function
	specs    []FunctionSpec
	maxSteps uint64
}

// LoadError describes a function file that could not be loaded.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("functions/%s: %s", filepath.Base(e.File), e.Message)
}

// LoadStarlark loads every *.star file in dir. A missing directory yields an
// empty provider. Names starting with _ are private to their file.
func LoadStarlark(dir string, logger *slog.Logger) (*Starlark, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Starlark{dir: dir, logger: logger, funcs: map[string]*starlark.Function{}}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("failed to access functions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("functions path is not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.star"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan functions directory: %w", err)
	}
	for _, file := range files {
		if err := p.loadFile(file); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(p.funcs))
	for name := range p.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fn := p.funcs[name]
		spec := FunctionSpec{Name: name, MinArgs: fn.NumParams(), MaxArgs: fn.NumParams()}
		if fn.HasVarargs() {
			spec.MinArgs = fn.NumParams() - 1
			spec.MaxArgs = -1
		}
		p.specs = append(p.specs, spec)
	}
	logger.Debug("loaded starlark functions", slog.String("dir", dir), slog.Int("count", len(p.specs)))
	return p, nil
}

func (p *Starlark) loadFile(path string) error {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a glob inside the functions directory
	if err != nil {
		return &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	thread := &starlark.Thread{
		Name:  "load:" + strings.TrimSuffix(filepath.Base(path), ".star"),
		Print: func(_ *starlark.Thread, _ string) {},
	}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, path, content, predeclared())
	if err != nil {
		return &LoadError{File: path, Message: fmt.Sprintf("Starlark execution error: %v", err)}
	}

	for name, value := range globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		fn, ok := value.(*starlark.Function)
		if !ok {
			continue
		}
		if _, dup := p.funcs[name]; dup {
			return &LoadError{File: path, Message: fmt.Sprintf("function %s is defined in more than one file", name)}
		}
		p.funcs[name] = fn
	}
	return nil
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{"math": starlarkmath.Module}
}

// SetMaxSteps bounds the Starlark steps of a single call. Zero means unbounded.
func (p *Starlark) SetMaxSteps(n uint64) {
	p.maxSteps = n
}

// Name implements Provider.
func (p *Starlark) Name() string { return "starlark" }

// Functions implements Provider.
func (p *Starlark) Functions() []FunctionSpec { return p.specs }

// Call implements Provider. Cancellation of ctx interrupts the running thread.
func (p *Starlark) Call(ctx context.Context, name string, args [][]float64) ([]float64, error) {
	fn, ok := p.funcs[name]
	if !ok {
		return nil, fmt.Errorf("unknown starlark function %s", name)
	}

	thread := &starlark.Thread{
		Name:  "call:" + name,
		Print: func(_ *starlark.Thread, msg string) { p.logger.Debug(msg, slog.String("function", name)) },
	}
	if p.maxSteps > 0 {
		thread.SetMaxExecutionSteps(p.maxSteps)
	}
	stop := context.AfterFunc(ctx, func() { thread.Cancel(ctx.Err().Error()) })
	defer stop()

	n := 0
	if len(args) > 0 {
		n = len(args[0])
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make(starlark.Tuple, len(args))
		for j := range args {
			row[j] = starlark.Float(args[j][i])
		}
		v, err := starlark.Call(thread, fn, row, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i], err = toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return out, nil
}

func toFloat(v starlark.Value) (float64, error) {
	if v == starlark.None {
		return math.NaN(), nil
	}
	if f, ok := starlark.AsFloat(v); ok {
		return f, nil
	}
	return 0, fmt.Errorf("function returned %s, want a number", v.Type())
}
