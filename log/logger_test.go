package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerJSONRespectsDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Debug: false, JSON: true, Writer: &buf})

	l.Debug("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output at info level for Debug(), got %q", buf.String())
	}

	l.Info("hello %s", "world")
	if !strings.Contains(buf.String(), "hello world") {
		t.Fatalf("expected formatted message in output, got %q", buf.String())
	}
}

func TestLoggerDebugOptionEnablesDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Debug: true, JSON: true, Writer: &buf})

	l.Debug("visible %d", 1)
	if !strings.Contains(buf.String(), "visible 1") {
		t.Fatalf("expected debug message with Debug:true, got %q", buf.String())
	}
}

func TestLoggerWithHostAnnotates(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{JSON: true, Writer: &buf}).WithHost("h1.example.com")

	l.Info("deploying")
	if !strings.Contains(buf.String(), "h1.example.com") {
		t.Fatalf("expected host annotation in output, got %q", buf.String())
	}
}

func TestNoOpLoggerDiscardsEverything(t *testing.T) {
	var l LibraryLogger = NoOpLogger{}
	l.Info("x")
	l.Debug("x")
	l.Warn("x")
	l.Error("x")
}
