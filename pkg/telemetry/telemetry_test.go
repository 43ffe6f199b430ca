package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{"default is valid", func(cfg *Config) {}, false},
		{"missing service name", func(cfg *Config) { cfg.ServiceName = "" }, true},
		{"bad log level", func(cfg *Config) { cfg.Logging.Level = "verbose" }, true},
		{"bad log format", func(cfg *Config) { cfg.Logging.Format = "xml" }, true},
		{"bad exporter", func(cfg *Config) {
			cfg.Tracing.Enabled = true
			cfg.Tracing.Exporter = "jaeger"
		}, true},
		{"bad sampling rate", func(cfg *Config) {
			cfg.Tracing.SamplingRate = 1.5
		}, true},
		{"zero event buffer", func(cfg *Config) { cfg.Events.BufferSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEventPublisher_SyncDelivery(t *testing.T) {
	cfg := DefaultConfig().Events
	cfg.EnableAsync = false

	ep, err := NewEventPublisher(cfg)
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	var received []Event
	ep.Subscribe(func(event Event) {
		received = append(received, event)
	}, nil)

	if err := ep.PublishNodeResolved("res-1", "language", []string{"typescript"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("Expected 1 delivered event, got %d", len(received))
	}
	if received[0].Type != EventTypeNodeResolved || received[0].NodeID != "language" {
		t.Errorf("Unexpected event: %+v", received[0])
	}
	if received[0].ID == "" || received[0].Timestamp.IsZero() {
		t.Error("Expected generated ID and timestamp")
	}
}

func TestEventPublisher_SubscriberFilter(t *testing.T) {
	cfg := DefaultConfig().Events
	cfg.EnableAsync = false

	ep, err := NewEventPublisher(cfg)
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	var errorsOnly []Event
	ep.Subscribe(func(event Event) {
		errorsOnly = append(errorsOnly, event)
	}, FilterByLevel(EventLevelError))

	_ = ep.PublishNodeResolved("res-1", "language", []string{"typescript"})
	_ = ep.PublishResolutionFailed("res-1", "cycle detected")

	if len(errorsOnly) != 1 || errorsOnly[0].Type != EventTypeResolutionFailed {
		t.Errorf("Expected only the failure event, got %+v", errorsOnly)
	}
}

func TestEventPublisher_DisabledIsNoop(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}
	if err := ep.PublishCatalogReloaded("1.0.0", 6); err != nil {
		t.Errorf("Disabled publisher must accept events silently, got %v", err)
	}
}

func TestEventPublisher_AsyncFlushOnShutdown(t *testing.T) {
	cfg := DefaultConfig().Events
	cfg.EnableAsync = true
	cfg.MaxBatchSize = 100

	ep, err := NewEventPublisher(cfg)
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	var mu = make(chan Event, 10)
	ep.Subscribe(func(event Event) { mu <- event }, nil)

	_ = ep.PublishPlanGenerated("res-1", "plan-1", 4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ep.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case event := <-mu:
		if event.Type != EventTypePlanGenerated {
			t.Errorf("Unexpected event type %s", event.Type)
		}
	default:
		t.Error("Expected buffered event flushed on shutdown")
	}
}

func TestMetrics_DisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// None of these may panic without a registry.
	m.RecordResolutionStarted("web")
	m.RecordResolutionCompleted("persisted", time.Second)
	m.RecordSolicitation("language", "accepted")
	m.RecordPlan(map[string]int{"delete_file": 2})
	m.RecordPolicyViolation("protected-paths", "error")
	m.RecordCatalogReload("success", 6)
	m.RecordError("fatal", "CONFLICT_CYCLE")
}

func TestMetrics_HandlerExposesCounters(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.Enabled = true

	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RecordResolutionStarted("web")
	m.RecordResolutionCompleted("persisted", 120*time.Millisecond)
	m.RecordPlan(map[string]int{"remove_dependency": 4, "delete_file": 3})
	m.RecordSolicitation("language", "accepted")
	m.RecordSupersession("biome")
	m.RecordError("fatal", "CONFLICT_CYCLE")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"stackforge_resolutions_started_total",
		"stackforge_resolutions_completed_total",
		"stackforge_plan_operations_total",
		"stackforge_solicitations_total",
		"stackforge_supersessions_total",
		"stackforge_errors_by_class_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metric %s in output", want)
		}
	}
}

func TestTelemetry_ContextRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Events.EnableAsync = false

	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tel.Shutdown(ctx)
	}()

	ctx := tel.WithContext(context.Background())
	if FromTelemetryContext(ctx) != tel {
		t.Error("Expected telemetry handle from context")
	}
	if FromContext(ctx) != tel.Logger {
		t.Error("Expected logger from context")
	}
	if FromTelemetryContext(context.Background()) != nil {
		t.Error("Expected nil telemetry from empty context")
	}
}

func TestStartOperation_WithoutTelemetry(t *testing.T) {
	ic := StartOperation(context.Background(), "plan.generate")
	if ic.Logger == nil || ic.Timer == nil {
		t.Fatal("Expected fallback logger and timer")
	}
	ic.End(nil)
}
