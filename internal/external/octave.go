package external

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultOctaveFunctions are the domain routines shipped as octave scripts.
var DefaultOctaveFunctions = []FunctionSpec{
	{Name: "salinity_combined", MinArgs: 2, MaxArgs: -1},
	{Name: "oxygen_combined", MinArgs: 2, MaxArgs: -1},
	{Name: "nitrate_combined", MinArgs: 2, MaxArgs: -1},
	{Name: "aou_gg", MinArgs: 3, MaxArgs: 3},
	{Name: "canyonb_alkali", MinArgs: 1, MaxArgs: -1},
	{Name: "canyonb_tcarbn", MinArgs: 1, MaxArgs: -1},
	{Name: "canyonb_ph_tot", MinArgs: 1, MaxArgs: -1},
	{Name: "canyonb_nitrat", MinArgs: 1, MaxArgs: -1},
	{Name: "canyonb_phspht", MinArgs: 1, MaxArgs: -1},
	{Name: "canyonb_silcat", MinArgs: 1, MaxArgs: -1},
}

// OctaveConfig configures the octave process provider.
type OctaveConfig struct {
	// Binary is the octave executable, octave-cli by default.
	Binary string

	// ScriptsDir is added to the octave path before each call.
	ScriptsDir string

	// Functions overrides DefaultOctaveFunctions.
	Functions []FunctionSpec

	Logger *slog.Logger
}

// Octave runs each call in a fresh octave process, exchanging columns through
// temporary text files.
type Octave struct {
	binary     string
	scriptsDir string
	functions  []FunctionSpec
	logger     *slog.Logger
}

// NewOctave creates an octave provider.
func NewOctave(cfg OctaveConfig) *Octave {
	if cfg.Binary == "" {
		cfg.Binary = "octave-cli"
	}
	if cfg.Functions == nil {
		cfg.Functions = DefaultOctaveFunctions
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Octave{
		binary:     cfg.Binary,
		scriptsDir: cfg.ScriptsDir,
		functions:  cfg.Functions,
		logger:     cfg.Logger,
	}
}

// Name implements Provider.
func (o *Octave) Name() string { return "octave" }

// Functions implements Provider.
func (o *Octave) Functions() []FunctionSpec { return o.functions }

// Available reports whether the octave binary can be found.
func (o *Octave) Available() bool {
	_, err := exec.LookPath(o.binary)
	return err == nil
}

// Call implements Provider.
func (o *Octave) Call(ctx context.Context, name string, args [][]float64) ([]float64, error) {
	dir, err := os.MkdirTemp("", "cruiseqc-octave-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	argNames := make([]string, len(args))
	for i, col := range args {
		argNames[i] = fmt.Sprintf("a%d", i+1)
		if err := writeColumn(filepath.Join(dir, argNames[i]+".txt"), col); err != nil {
			return nil, err
		}
	}
	outPath := filepath.Join(dir, "out.txt")
	script := o.script(dir, name, argNames, outPath)

	o.logger.Debug("calling octave", slog.String("function", name), slog.Int("args", len(args)))
	cmd := exec.CommandContext(ctx, o.binary, "--no-gui", "--quiet", "--eval", script) //nolint:gosec // G204: function names come from the allow-list
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("octave %s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return readColumn(outPath)
}

func (o *Octave) script(dir, name string, argNames []string, outPath string) string {
	var b strings.Builder
	if o.scriptsDir != "" {
		fmt.Fprintf(&b, "addpath('%s');", o.scriptsDir)
	}
	for _, a := range argNames {
		fmt.Fprintf(&b, "%s = dlmread('%s');", a, filepath.Join(dir, a+".txt"))
	}
	fmt.Fprintf(&b, "r = %s(%s);", name, strings.Join(argNames, ", "))
	fmt.Fprintf(&b, "dlmwrite('%s', r(:), 'precision', '%%.17g');", outPath)
	return b.String()
}

func writeColumn(path string, col []float64) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is inside our temp dir
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, v := range col {
		if math.IsNaN(v) {
			_, _ = w.WriteString("NaN\n")
			continue
		}
		_, _ = w.WriteString(strconv.FormatFloat(v, 'g', -1, 64) + "\n")
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readColumn(path string) ([]float64, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside our temp dir
	if err != nil {
		return nil, fmt.Errorf("failed to read octave result: %w", err)
	}
	var out []float64
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("bad octave result %q: %w", line, err)
		}
		out = append(out, v)
	}
	return out, nil
}
