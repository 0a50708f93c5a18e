package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupStdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	tp, shutdown, err := Setup(context.Background(), Config{ServiceName: "todo-app", Environment: "test", Exporter: ExporterStdout, Output: &buf})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, span := tp.Tracer("test").Start(context.Background(), "unit.span")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "unit.span") {
		t.Fatalf("expected span in output, got %s", buf.String())
	}
	if otel.GetTracerProvider() != tp {
		t.Fatalf("expected global provider to be replaced")
	}
}

func TestSetupResourceAttributes(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "service.version=1.2.3,service.name=from-env")

	var buf bytes.Buffer
	tp, shutdown, err := Setup(context.Background(), Config{ServiceName: "todo-app", Environment: "staging", Exporter: ExporterStdout, Output: &buf})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, span := tp.Tracer("test").Start(context.Background(), "resource.span")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"staging", "1.2.3", "todo-app"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in exported resource, got %s", want, out)
		}
	}
	if strings.Contains(out, "from-env") {
		t.Fatalf("configured service name should win over the environment: %s", out)
	}
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	if _, _, err := Setup(context.Background(), Config{Exporter: "zipkin"}); err == nil {
		t.Fatalf("expected error")
	}
}
