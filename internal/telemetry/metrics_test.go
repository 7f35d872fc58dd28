package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordRegistered(ctx)
	m.RecordRegistered(ctx)
	m.RecordVerification(ctx, ResultSuccess)
	m.RecordVerification(ctx, ResultInvalidCode)
	m.RecordVerification(ctx, ResultInvalidCode)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	registered := int64(0)
	byResult := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch md.Name {
				case "accounts.registered":
					registered += dp.Value
				case "accounts.verification_attempts":
					v, _ := dp.Attributes.Value("result")
					byResult[v.AsString()] += dp.Value
				}
			}
		}
	}
	if registered != 2 {
		t.Errorf("accounts.registered = %d, want 2", registered)
	}
	if byResult[ResultSuccess] != 1 || byResult[ResultInvalidCode] != 2 {
		t.Errorf("verification attempts = %v", byResult)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRegistered(context.Background())
	m.RecordVerification(context.Background(), ResultNotFound)
}
