package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsTenantLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("entity_kind", "payers"),
		attribute.String("org_name", "acme"),
		attribute.String("status", "created"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "org_name" {
			t.Fatalf("expected org_name to be dropped")
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordProvisionStep(context.Background(), "functions", "created")
	m.RecordDenominationMismatch(context.Background())
}

func TestNewNopRecords(t *testing.T) {
	m := NewNop()
	if m == nil {
		t.Fatalf("expected metrics instance")
	}
	m.RecordLifecycle(context.Background(), "payer", "create")
	m.RecordIndexEnsure(context.Background(), "edit_logs", "failed")
}
