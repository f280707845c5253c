package telemetry_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/daimatz/warzone-loader/pkg/config"
	"github.com/daimatz/warzone-loader/pkg/telemetry"
)

var svc = telemetry.Service{Name: "warzone-loader-test", Version: "1.0.0", GameID: "warzone", GameJar: "/opt/warzone/game.jar"}

func TestSetup(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Telemetry
	}{
		{"noop when endpoint empty", config.Telemetry{Enabled: true}},
		{"noop when explicitly disabled", config.Telemetry{Endpoint: "http://localhost:4318", Enabled: false}},
		// Non-routable address so no actual export happens.
		{"creates provider when endpoint set", config.Telemetry{Endpoint: "http://192.0.2.1:4318", Enabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := telemetry.Setup(context.Background(), svc, tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown error: %v", err)
			}
		})
	}
}

func TestNoopShutdownIgnoresCancelledContext(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), svc, config.Telemetry{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}

func TestServiceResource(t *testing.T) {
	tests := []struct {
		name string
		svc  telemetry.Service
		want map[attribute.Key]string
		none []attribute.Key
	}{
		{
			name: "game attributes",
			svc:  svc,
			want: map[attribute.Key]string{
				semconv.ServiceNameKey:           "warzone-loader-test",
				semconv.ServiceVersionKey:        "1.0.0",
				semconv.DeploymentEnvironmentKey: "production",
				telemetry.AttrGameID:             "warzone",
				telemetry.AttrGameJar:            "/opt/warzone/game.jar",
			},
		},
		{
			name: "development without game",
			svc:  telemetry.Service{Name: "loader", Development: true},
			want: map[attribute.Key]string{
				semconv.ServiceNameKey:           "loader",
				semconv.DeploymentEnvironmentKey: "development",
			},
			none: []attribute.Key{telemetry.AttrGameID, telemetry.AttrGameJar, semconv.ServiceVersionKey},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.svc.Resource(context.Background())
			if err != nil {
				t.Fatalf("Resource: %v", err)
			}
			set := res.Set()
			for key, want := range tt.want {
				got, ok := set.Value(key)
				if !ok || got.AsString() != want {
					t.Errorf("%s: got %q, want %q", key, got.AsString(), want)
				}
			}
			for _, key := range tt.none {
				if v, ok := set.Value(key); ok {
					t.Errorf("%s: got %q, want unset", key, v.AsString())
				}
			}
		})
	}
}

func TestTracerStartsSpans(t *testing.T) {
	_, span := telemetry.Tracer().Start(context.Background(), "startup")
	defer span.End()
	if span == nil {
		t.Fatal("expected a span")
	}
}
