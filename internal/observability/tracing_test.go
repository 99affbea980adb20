package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, testLogger)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown returned error: %v", err)
	}
}

func TestInitTracingStdout(t *testing.T) {
	cfg := TracingConfig{
		Enabled:     true,
		ServiceName: "isstracker-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      io.Discard,
	}
	shutdown, err := InitTracing(context.Background(), cfg, testLogger)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	ShutdownWithTimeout(context.Background(), shutdown, testLogger)
}

func TestInitTracingUnknownExporter(t *testing.T) {
	cfg := TracingConfig{Enabled: true, Exporter: "zipkin", SampleRatio: 1}
	_, err := InitTracing(context.Background(), cfg, testLogger)
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
	if !strings.Contains(err.Error(), "zipkin") {
		t.Errorf("error should name the exporter, got %v", err)
	}
}

func TestShutdownWithTimeoutNil(t *testing.T) {
	// Must not panic.
	ShutdownWithTimeout(context.Background(), nil, testLogger)
	ShutdownWithTimeout(context.Background(), func(context.Context) error {
		return errors.New("flush failed")
	}, testLogger)
}
