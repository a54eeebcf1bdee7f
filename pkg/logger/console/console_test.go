package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/listenkg/pkg/logger"
)

func TestConsoleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Output: &buf})

	l.Debug("hidden")
	l.Warn("[Cache] Invalidating cache", "state", "stale_by_time")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug message to be filtered, got %q", out)
	}
	if !strings.Contains(out, "Invalidating cache") || !strings.Contains(out, "stale_by_time") {
		t.Fatalf("expected warn message with keyvals, got %q", out)
	}
}

func TestConsoleLoggerDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Output: &buf, Debug: true, Prefix: "kg"})
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") || !strings.Contains(buf.String(), "kg") {
		t.Fatalf("expected prefixed debug output, got %q", buf.String())
	}
}

func TestPackageLoggerDispatch(t *testing.T) {
	var a, b bytes.Buffer
	logger.Init(
		NewConsoleLogger(ConsoleLoggerParams{Output: &a}),
		NewConsoleLogger(ConsoleLoggerParams{Output: &b}),
	)
	defer logger.Init()

	logger.Info("[Graph] Triples built", "total", 6)
	for i, buf := range []*bytes.Buffer{&a, &b} {
		if !strings.Contains(buf.String(), "Triples built") {
			t.Fatalf("backend %d: expected message, got %q", i, buf.String())
		}
	}
}
