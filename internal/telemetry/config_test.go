package telemetry

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestProductionConfigValidates(t *testing.T) {
	if err := ProductionConfig().Validate(); err != nil {
		t.Fatalf("production config should validate, got %v", err)
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown log level")
	}
}

func TestValidateRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Exporter = "zipkin"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown trace exporter")
	}
}

func TestValidateRejectsOutOfRangeSamplingRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.SamplingRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for out-of-range sampling rate")
	}
}

func TestValidateRejectsMetricsWithoutListenAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddress = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for enabled metrics with no listen address")
	}
}
