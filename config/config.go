// Package config loads the service configuration from a YAML or JSON file,
// an optional .env file and K_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/octowatt/core/metrics"
	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/infra/mqtt"
)

type Config struct {
	Octopus    OctopusConfig     `json:"octopus"`
	Sync       SyncConfig        `json:"sync"`
	Cache      CacheConfig       `json:"cache"`
	Server     ServerConfig      `json:"server"`
	Logging    LoggingConfig     `json:"logging"`
	Metrics    metrics.Config    `json:"metrics"`
	MQTT       mqtt.Config       `json:"mqtt"`
	Appliances []model.Appliance `json:"appliances"`
	Aggregate  AggregateConfig   `json:"aggregate"`
}

// Load reads path (when not empty), then the .env file next to it or in the
// working directory, then environment overrides such as
// K_OCTOPUS__API_KEY=... for octopus.api_key.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, err
	}
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv populates the process environment from .env files without
// overriding variables that are already set.
func loadDotEnv(path string) error {
	candidates := []string{".env"}
	if path != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(path), ".env")}, candidates...)
	}
	seen := map[string]bool{}
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c, err)
		}
	}
	return nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Octopus.SetDefaults()
	c.Sync.SetDefaults()
	c.Cache.SetDefaults()
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.MQTT.SetDefaults()
	c.Aggregate.SetDefaults()
	if len(c.Appliances) == 0 {
		c.Appliances = DefaultAppliances()
	}
}

// Validate reports the first invalid section.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"octopus", c.Octopus.Validate},
		{"sync", c.Sync.Validate},
		{"cache", c.Cache.Validate},
		{"server", c.Server.Validate},
		{"logging", c.Logging.Validate},
		{"mqtt", c.MQTT.Validate},
		{"aggregate", c.Aggregate.Validate},
		{"appliances", c.validateAppliances},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	return nil
}

func (c Config) validateAppliances() error {
	seen := map[string]bool{}
	for i, a := range c.Appliances {
		if a.Name == "" {
			return fmt.Errorf("appliance %d has no name", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate appliance %q", a.Name)
		}
		seen[a.Name] = true
		if len(a.Pattern) == 0 {
			return fmt.Errorf("appliance %q has an empty pattern", a.Name)
		}
		for _, w := range a.Pattern {
			if w < 0 {
				return fmt.Errorf("appliance %q has a negative weight", a.Name)
			}
		}
	}
	return nil
}
