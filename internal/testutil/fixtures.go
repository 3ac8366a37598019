package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ExchangeFile renders a WHP-exchange document. units may be empty to omit the
// units row.
func ExchangeFile(header, units string, rows ...string) string {
	var b strings.Builder
	b.WriteString("BOTTLE,20240301CRUISEQC\n")
	b.WriteString("# test cruise\n")
	b.WriteString(header + "\n")
	if units != "" {
		b.WriteString(units + "\n")
	}
	for _, r := range rows {
		b.WriteString(r + "\n")
	}
	b.WriteString("END_DATA\n")
	return b.String()
}

// CSVFile renders a flat CSV document.
func CSVFile(header string, rows ...string) string {
	return strings.Join(append([]string{header}, rows...), "\n") + "\n"
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
