package oracle

import (
	"strings"
	"testing"
)

func TestLoadConfigFromReader(t *testing.T) {
	RegisterProvider("sim", func(name string, cfg *ProviderConfig) (Provider, error) {
		return nil, nil
	})

	yaml := `
default: primary
providers:
  primary:
    type: sim
    timeout: 5s
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadConfigFromReader: %v", err)
	}
	if cfg.Default != "primary" {
		t.Fatalf("Default = %q, want primary", cfg.Default)
	}
	if cfg.Providers["primary"].Timeout.String() != "5s" {
		t.Fatalf("Timeout = %s, want 5s", cfg.Providers["primary"].Timeout)
	}
}

func TestConfig_Validate_UnknownProviderType(t *testing.T) {
	yaml := `
default: primary
providers:
  primary:
    type: does-not-exist
`
	if _, err := LoadConfigFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected validation error for unknown provider type")
	}
}

func TestConfig_Validate_EmptyProviders(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty providers")
	}
}
