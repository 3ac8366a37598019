// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/cruiseqc/internal/cli/output"
	rootutil "github.com/leapstack-labs/cruiseqc/internal/testutil"
)

// Bottle file fixtures shared by CLI tests.
const (
	Header = "STNNBR,CASTNO,BTLNBR,LATITUDE,LONGITUDE,DATE,SALNTY,SALNTY_FLAG_W"
	Units  = ",,,DEG,DEG,,PSS-78,"

	Definitions = `computed_params:
  - param_name: SAL2
    equation: SALNTY * 2
    precision: 2
`
)

// SourceRows is the first version of the test cruise.
var SourceRows = []string{
	"1,1,1,-10.5,20.25,20240301,34.5,2",
	"1,1,2,-10.5,20.25,20240301,34.6,2",
	"2,1,1,-11.0,21.0,20240302,34.7,3",
}

// SetupTestProject creates a project directory with a config file, the
// computed-parameter catalogue and a source file. It returns the project
// directory and the source path.
func SetupTestProject(t *testing.T) (dir, source string) {
	t.Helper()

	dir = t.TempDir()
	rootutil.WriteFile(t, dir, "cruiseqc.yaml", "log:\n  level: warn\n")
	rootutil.WriteFile(t, dir, "computed.yaml", Definitions)
	source = WriteSource(t, dir, "cruise_hy1.csv", SourceRows...)
	return dir, source
}

// WriteSource writes an exchange file with rows to dir/name.
func WriteSource(t *testing.T, dir, name string, rows ...string) string {
	t.Helper()
	return rootutil.WriteFile(t, dir, name, rootutil.ExchangeFile(Header, Units, rows...))
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if fenceCount := strings.Count(md, "```"); fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

// ReadFile returns the content of dir/name.
func ReadFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}
