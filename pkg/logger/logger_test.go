package logger_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	pcontext "github.com/devenvgo/devenv/pkg/context"
	"github.com/devenvgo/devenv/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.WithComponent("gc").Info("collecting")

	output := buf.String()
	if !strings.Contains(output, "[gc] collecting") {
		t.Errorf("expected component prefix in output, got %q", output)
	}
}

func TestLogger_FieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Info("built",
		logger.WithField("zeta", 1),
		logger.WithField("alpha", "x"),
	)

	output := buf.String()
	if !strings.Contains(output, "{alpha=x, zeta=1}") {
		t.Errorf("expected sorted fields, got %q", output)
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Success("assembled")

	if !strings.Contains(buf.String(), "assembled") {
		t.Error("expected success message in log output")
	}
}

func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "error", &buf)

	log.Debug("should not appear")
	log.Info("should not appear")
	log.Warn("should not appear")
	log.Error("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("lower level logs should not appear with error level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("error level log should appear")
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		verbose, quiet bool
		want           string
	}{
		{false, false, "info"},
		{true, false, "debug"},
		{false, true, "warn"},
		{true, true, "debug"},
	}
	for _, tt := range tests {
		if got := logger.LevelFor(tt.verbose, tt.quiet); got != tt.want {
			t.Errorf("LevelFor(%v, %v) = %s, want %s", tt.verbose, tt.quiet, got, tt.want)
		}
	}
}

func TestFromContext_AddsOperation(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("", "debug", &buf)

	ctx := pcontext.WithInvocationID(context.Background(), "inv_test")
	ctx = pcontext.WithOperation(ctx, "assemble")
	log := logger.FromContext(ctx, base)

	log.Info("writing files")
	log.Debug("details")

	output := buf.String()
	if !strings.Contains(output, "op=assemble") {
		t.Errorf("expected operation field, got %q", output)
	}
	if !strings.Contains(output, "invocation=inv_test") {
		t.Errorf("expected invocation id on debug entries, got %q", output)
	}
}
