// Package testutil holds the bottle file fixtures and the logger shared by package tests.
package testutil

import (
	"bytes"
	"log/slog"
	"testing"
)

// NewTestLogger returns a debug-level logger whose records go to the test log,
// so they are shown only for failing tests or under -v.
func NewTestLogger(tb testing.TB) *slog.Logger {
	tb.Helper()
	h := slog.NewTextHandler(tbLog{tb}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h)
}

// tbLog writes one test log entry per record.
type tbLog struct {
	tb testing.TB
}

func (l tbLog) Write(p []byte) (int, error) {
	l.tb.Helper()
	l.tb.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}
