package otel_test

import (
	"context"
	"testing"

	"github.com/improperboy/Hackmate-sub002/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("HACKMATE_OTEL_ENDPOINT", "")
	t.Setenv("HACKMATE_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("HACKMATE_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("HACKMATE_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
