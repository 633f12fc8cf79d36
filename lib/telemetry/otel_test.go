package telemetry

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointInstallsNoop(t *testing.T) {
	providers, shutdown, err := Init(context.Background(), Config{ServiceName: "straddle-test"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if providers.MeterProvider == nil {
		t.Fatal("meter provider must never be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	host, insecure, err := parseEndpoint("http://otel-collector:4318")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if host != "otel-collector:4318" || !insecure {
		t.Fatalf("got host=%q insecure=%v", host, insecure)
	}
	host, insecure, err = parseEndpoint("https://otel.example.com")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if host != "otel.example.com" || insecure {
		t.Fatalf("got host=%q insecure=%v", host, insecure)
	}
}
