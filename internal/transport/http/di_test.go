package http

import (
	"testing"

	"github.com/qp-cloud/edge-auth-gateway/internal/config"
)

func TestNewOtelConfig_ObservabilitySettingsPropagate(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.TraceEnabled = true
	cfg.Observability.TracingEndpointURL = "grpc://collector:4317"
	cfg.Observability.TraceSampleRatio = 0.25
	cfg.Observability.TraceInsecure = false

	otelCfg := newOtelConfig(cfg)

	if otelCfg.ServiceName != serviceName {
		t.Errorf("unexpected service name %q", otelCfg.ServiceName)
	}
	if !otelCfg.Enabled || otelCfg.EndpointURL != "grpc://collector:4317" {
		t.Errorf("endpoint settings not propagated: %+v", otelCfg)
	}
	if otelCfg.SampleRatio != 0.25 {
		t.Errorf("expected sample ratio 0.25, got %v", otelCfg.SampleRatio)
	}
	if otelCfg.Insecure {
		t.Error("expected insecure to follow config")
	}
}

func TestNewKeyProvider_SelectionOrder(t *testing.T) {
	cfg := &config.Config{}

	if _, err := newKeyProvider(cfg); err == nil {
		t.Error("expected error with neither endpoint nor static key")
	}

	cfg.Secrets.StaticKey = "dev-key"
	if provider, err := newKeyProvider(cfg); err != nil || provider == nil {
		t.Errorf("expected static provider, got %v", err)
	}

	cfg.Secrets.Endpoint = "https://secrets.example.com/jwt"
	if provider, err := newKeyProvider(cfg); err != nil || provider == nil {
		t.Errorf("expected cached HTTP provider, got %v", err)
	}
}
