package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestInitDisabledLeavesNoopTracer(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Enabled() {
		t.Error("Enabled() = true, want false when Config.Enabled is false")
	}
	if Tracer() == nil {
		t.Error("Tracer() should never return nil")
	}
}

func TestInitUnknownExporterErrors(t *testing.T) {
	err := Init(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon", ServiceName: "hc-test"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestInitStdoutExporterEnablesTracing(t *testing.T) {
	defer func() {
		global = &provider{enabled: false, tracer: global.tracer}
	}()

	err := Init(context.Background(), Config{
		Enabled:     true,
		Exporter:    "stdout",
		ServiceName: "hc-test",
		SampleRate:  1.0,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !Enabled() {
		t.Error("Enabled() = false after successful stdout Init")
	}

	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestStartSpanAndSetSpanErrorOK(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "test.op", AttrVMID.String("vm-1"))
	if ctx == nil {
		t.Fatal("StartSpan returned nil context")
	}
	SetSpanError(span, errors.New("boom"))
	span.End()

	_, span2 := StartServerSpan(context.Background(), "test.rpc")
	SetSpanOK(span2)
	span2.End()
}

func TestShutdownWithoutInitIsNoop(t *testing.T) {
	global = &provider{enabled: false, tracer: global.tracer}
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown without Init = %v, want nil", err)
	}
}
