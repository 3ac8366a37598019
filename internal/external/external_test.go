package external

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cruiseqc/internal/expr"
	"github.com/leapstack-labs/cruiseqc/internal/testutil"
)

type fakeProvider struct {
	delay time.Duration
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Functions() []FunctionSpec {
	return []FunctionSpec{{Name: "double", MinArgs: 1, MaxArgs: 1}}
}

func (f *fakeProvider) Call(ctx context.Context, _ string, args [][]float64) ([]float64, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(args[0]))
	for i, v := range args[0] {
		out[i] = 2 * v
	}
	return out, nil
}

type env map[string][]float64

func (e env) Len() int {
	for _, c := range e {
		return len(c)
	}
	return 0
}

func (e env) HasColumn(name string) bool {
	_, ok := e[name]
	return ok
}

func (e env) Column(name string) ([]float64, error) { return e[name], nil }

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		p       *fakeProvider
		timeout time.Duration
		want    []float64
		check   func(t *testing.T, err error)
	}{
		{
			name: "success",
			p:    &fakeProvider{},
			want: []float64{2, 4},
		},
		{
			name:    "timeout",
			p:       &fakeProvider{delay: time.Second},
			timeout: 20 * time.Millisecond,
			check: func(t *testing.T, err error) {
				var to *ExternalComputationTimeout
				require.ErrorAs(t, err, &to)
				assert.Equal(t, "double", to.Function)
				assert.Equal(t, 20*time.Millisecond, to.Timeout)
				assert.True(t, IsTimeout(err))
			},
		},
		{
			name: "provider error",
			p:    &fakeProvider{err: errors.New("boom")},
			check: func(t *testing.T, err error) {
				var fe *expr.FunctionError
				require.ErrorAs(t, err, &fe)
				assert.False(t, IsTimeout(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := expr.DefaultRegistry()
			require.NoError(t, Register(reg, tt.p, tt.timeout))

			out, err := expr.NewSandbox(reg).Evaluate(context.Background(), "double(X)", env{"X": {1, 2}}, nil)
			if tt.check != nil {
				require.Error(t, err)
				tt.check(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := expr.NewRegistry()
	require.NoError(t, Register(reg, &fakeProvider{}, 0))
	assert.Error(t, Register(reg, &fakeProvider{}, 0))
}

func writeStar(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
}

func TestLoadStarlark(t *testing.T) {
	dir := t.TempDir()
	writeStar(t, dir, "ocean.star", `
def buoyancy(rho, rho0):
    return 9.81 * (rho - rho0) / rho0

def maybe(x):
    if x < 0:
        return None
    return math.sqrt(x)

def total(*xs):
    s = 0.0
    for x in xs:
        s += x
    return s

def _helper():
    return 1

SCALE = 2
`)

	p, err := LoadStarlark(dir, testutil.NewTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []FunctionSpec{
		{Name: "buoyancy", MinArgs: 2, MaxArgs: 2},
		{Name: "maybe", MinArgs: 1, MaxArgs: 1},
		{Name: "total", MinArgs: 0, MaxArgs: -1},
	}, p.Functions())

	ctx := context.Background()

	out, err := p.Call(ctx, "maybe", [][]float64{{4, -1}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, out[0])
	assert.True(t, math.IsNaN(out[1]))

	out, err = p.Call(ctx, "total", [][]float64{{1, 2}, {10, 20}, {100, 200}})
	require.NoError(t, err)
	assert.Equal(t, []float64{111, 222}, out)

	_, err = p.Call(ctx, "missing", nil)
	assert.Error(t, err)
}

func TestLoadStarlarkMissingDir(t *testing.T) {
	p, err := LoadStarlark(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	assert.Empty(t, p.Functions())
}

func TestLoadStarlarkErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{name: "syntax", files: map[string]string{"bad.star": "def f(:\n"}},
		{name: "duplicate", files: map[string]string{
			"a.star": "def f(x):\n    return x\n",
			"b.star": "def f(x):\n    return x\n",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, src := range tt.files {
				writeStar(t, dir, name, src)
			}
			_, err := LoadStarlark(dir, nil)
			var le *LoadError
			assert.ErrorAs(t, err, &le)
		})
	}
}

func TestStarlarkNonNumericResult(t *testing.T) {
	dir := t.TempDir()
	writeStar(t, dir, "s.star", "def label(x):\n    return \"x\"\n")
	p, err := LoadStarlark(dir, nil)
	require.NoError(t, err)

	_, err = p.Call(context.Background(), "label", [][]float64{{1}})
	assert.ErrorContains(t, err, "want a number")
}

func TestStarlarkTimeout(t *testing.T) {
	dir := t.TempDir()
	writeStar(t, dir, "slow.star", `
def spin(x):
    s = 0
    for i in range(1000000000):
        s += 1
    return x
`)
	p, err := LoadStarlark(dir, nil)
	require.NoError(t, err)

	reg := expr.NewRegistry()
	require.NoError(t, Register(reg, p, 50*time.Millisecond))

	_, err = expr.NewSandbox(reg).Evaluate(context.Background(), "spin(X)", env{"X": {1}}, nil)
	assert.True(t, IsTimeout(err))
}

func TestOctaveScript(t *testing.T) {
	o := NewOctave(OctaveConfig{ScriptsDir: "/opt/fn"})
	s := o.script("/tmp/w", "aou_gg", []string{"a1", "a2"}, "/tmp/w/out.txt")
	assert.Contains(t, s, "addpath('/opt/fn');")
	assert.Contains(t, s, "a1 = dlmread('/tmp/w/a1.txt');")
	assert.Contains(t, s, "r = aou_gg(a1, a2);")
	assert.Contains(t, s, "dlmwrite('/tmp/w/out.txt', r(:), 'precision', '%.17g');")
	assert.Equal(t, DefaultOctaveFunctions, o.Functions())
}

func TestColumnRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.txt")
	require.NoError(t, writeColumn(path, []float64{1.5, math.NaN(), -3}))
	got, err := readColumn(path)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1.5, got[0])
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, -3.0, got[2])
}

func TestOctaveCall(t *testing.T) {
	o := NewOctave(OctaveConfig{Functions: []FunctionSpec{{Name: "abs", MinArgs: 1, MaxArgs: 1}}})
	if !o.Available() {
		t.Skip("octave-cli not installed")
	}
	out, err := o.Call(context.Background(), "abs", [][]float64{{-1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out)
}
