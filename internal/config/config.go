package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dejo1307/javalens/internal/scanners"
)

// Config represents the javalens.yaml configuration.
type Config struct {
	Repo                string         `yaml:"repo"`
	Ignore              []string       `yaml:"ignore"`
	TestMarkers         []string       `yaml:"test_markers"`
	Analyzers           []string       `yaml:"analyzers"`
	Explainers          []string       `yaml:"explainers"`
	Renderers           []string       `yaml:"renderers"`
	Workers             int            `yaml:"workers"`
	AllFieldDeclarators bool           `yaml:"all_field_declarators"`
	ServiceName         string         `yaml:"service_name"`
	Output              OutputConfig   `yaml:"output"`
	Scanners            ScannersConfig `yaml:"scanners"`
}

// OutputConfig controls where and how output artifacts are generated.
type OutputConfig struct {
	Dir              string `yaml:"dir"`
	MaxSummaryTokens int    `yaml:"max_summary_tokens"`
}

// ScannersConfig overrides the built-in scanner vocabularies. Empty lists
// keep the defaults.
type ScannersConfig struct {
	Demographic       []scanners.Category      `yaml:"demographic"`
	Integration       []scanners.Category      `yaml:"integration"`
	Legacy            []scanners.System        `yaml:"legacy"`
	DemographicFields []scanners.FieldCategory `yaml:"demographic_fields"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Repo: ".",
		Ignore: []string{
			".git/**",
			"target/**",
			"build/**",
			"out/**",
			"**/node_modules/**",
			".javalens/**",
		},
		TestMarkers: []string{"test", "tests", "Test.java", "Tests.java", "/test/", "/tests/"},
		Analyzers:   []string{"structure", "services", "scanners"},
		Explainers:  []string{"cycles", "layers"},
		Renderers:   []string{"summary", "diagrams"},
		Output: OutputConfig{
			Dir:              ".javalens",
			MaxSummaryTokens: 4000,
		},
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = ".javalens"
	}
	if cfg.Output.MaxSummaryTokens == 0 {
		cfg.Output.MaxSummaryTokens = 4000
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("parsing config %s: workers must not be negative", path)
	}

	return cfg, nil
}

// DemographicVocabulary returns the configured demographic categories or
// the built-in ones.
func (c *Config) DemographicVocabulary() []scanners.Category {
	if len(c.Scanners.Demographic) > 0 {
		return c.Scanners.Demographic
	}
	return scanners.Demographic()
}

// IntegrationVocabulary returns the configured integration categories or
// the built-in ones.
func (c *Config) IntegrationVocabulary() []scanners.Category {
	if len(c.Scanners.Integration) > 0 {
		return c.Scanners.Integration
	}
	return scanners.Integration()
}

// LegacySystems returns the configured legacy systems or the built-in ones.
func (c *Config) LegacySystems() []scanners.System {
	if len(c.Scanners.Legacy) > 0 {
		return c.Scanners.Legacy
	}
	return scanners.LegacySystems()
}

// DemographicFields returns the configured field vocabulary or the
// built-in one.
func (c *Config) DemographicFields() []scanners.FieldCategory {
	if len(c.Scanners.DemographicFields) > 0 {
		return c.Scanners.DemographicFields
	}
	return scanners.DemographicFields()
}

// IsAnalyzerEnabled returns true if the named analyzer is enabled.
func (c *Config) IsAnalyzerEnabled(name string) bool {
	return contains(c.Analyzers, name)
}

// IsExplainerEnabled returns true if the named explainer is enabled.
func (c *Config) IsExplainerEnabled(name string) bool {
	return contains(c.Explainers, name)
}

// IsRendererEnabled returns true if the named renderer is enabled.
func (c *Config) IsRendererEnabled(name string) bool {
	return contains(c.Renderers, name)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
