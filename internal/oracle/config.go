package oracle

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config selects and configures one Provider per deployment. Only one
// provider is ever active at a time — the map shape (rather than a single
// struct) exists so a market can be reconfigured from "sim" to "http" by
// changing Default without touching the rest of the file.
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes how to construct a specific Provider instance.
type ProviderConfig struct {
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Testnet bool   `yaml:"testnet"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider associates a builder with a provider type name; an
// oracle implementation package (internal/oracle/sim, an HTTP adapter)
// calls this from its own init().
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// GetProvider builds a single provider instance directly from an inline
// configuration, without requiring a full Config map — convenient for
// tests and for cmd/marketd's single-market deployments.
func GetProvider(typeName string, cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		cfg = &ProviderConfig{}
	}
	cfgCopy := *cfg
	cfgCopy.Type = typeName
	if err := cfgCopy.validate("inline"); err != nil {
		return nil, err
	}
	builder, ok := lookupProviderBuilder(cfgCopy.Type)
	if !ok {
		return nil, fmt.Errorf("oracle provider: unsupported type %q", cfgCopy.Type)
	}
	return builder("inline", &cfgCopy)
}

// LoadConfig reads an oracle provider configuration file from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open oracle config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read oracle config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal oracle config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		provider.expandEnv()
		if err := provider.parseDurations(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) expandEnv() {
	p.Type = strings.TrimSpace(os.ExpandEnv(p.Type))
	p.BaseURL = strings.TrimSpace(os.ExpandEnv(p.BaseURL))
	p.APIKey = strings.TrimSpace(os.ExpandEnv(p.APIKey))
	p.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(p.TimeoutRaw))
}

func (p *ProviderConfig) parseDurations(name string) error {
	if p.TimeoutRaw == "" {
		p.Timeout = 0
		return nil
	}
	d, err := time.ParseDuration(p.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("oracle provider %s: invalid timeout %q: %w", name, p.TimeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("oracle provider %s: timeout must be positive, got %s", name, d)
	}
	p.Timeout = d
	return nil
}

// Validate ensures all providers have sane configuration.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("oracle config: providers cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			return fmt.Errorf("oracle config: default provider %q not defined", c.Default)
		}
	}
	for name, provider := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("oracle config: provider name cannot be empty")
		}
		if err := provider.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) validate(name string) error {
	if p == nil {
		return fmt.Errorf("oracle config: provider %s is nil", name)
	}
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("oracle config: provider %s must specify type", name)
	}
	if _, ok := lookupProviderBuilder(p.Type); !ok {
		return fmt.Errorf("oracle config: provider %s has unsupported type %q", name, p.Type)
	}
	return nil
}

// BuildProviders instantiates every configured provider.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	result := make(map[string]Provider, len(c.Providers))
	for name, providerCfg := range c.Providers {
		builder, ok := lookupProviderBuilder(providerCfg.Type)
		if !ok {
			return nil, fmt.Errorf("oracle provider %s: unsupported type %q", name, providerCfg.Type)
		}
		provider, err := builder(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("oracle provider %s: %w", name, err)
		}
		result[name] = provider
	}
	return result, nil
}

// BuildDefault builds and returns just the Default provider.
func (c *Config) BuildDefault() (Provider, error) {
	name := c.Default
	if name == "" {
		for n := range c.Providers {
			name = n
			break
		}
	}
	cfg, ok := c.Providers[name]
	if !ok {
		return nil, fmt.Errorf("oracle config: no provider named %q", name)
	}
	builder, ok := lookupProviderBuilder(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("oracle provider %s: unsupported type %q", name, cfg.Type)
	}
	return builder(name, cfg)
}
