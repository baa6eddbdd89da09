package telemetry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	ExporterStdout = "stdout"
	ExporterNoop   = "noop"

	SamplerAlwaysOn     = "always_on"
	SamplerAlwaysOff    = "always_off"
	SamplerRatio        = "trace_id_ratio"
	SamplerParentBased  = "parent_based_always_on"
	defaultExportPeriod = 30 * time.Second
)

// Config is the "telemetry" configuration section.
type Config struct {
	Enabled        bool                   `mapstructure:"enabled"`
	ServiceName    string                 `mapstructure:"service_name"`
	ServiceVersion string                 `mapstructure:"service_version"`
	Exporter       string                 `mapstructure:"exporter"` // stdout or noop
	Sampler        SamplerConfig          `mapstructure:"sampler"`
	ResourceAttrs  map[string]interface{} `mapstructure:"resource_attributes"` // nested maps are flattened with "."
	Metrics        MetricsConfig          `mapstructure:"metrics"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Ratio float64 `mapstructure:"ratio"` // trace_id_ratio only
}

// MetricsConfig controls the periodic metric export.
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
	Namespace      string        `mapstructure:"namespace"` // meter name prefix
}

func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "admission-gateway",
		ServiceVersion: "0.0.1",
		Exporter:       ExporterStdout,
		Sampler:        SamplerConfig{Type: SamplerParentBased, Ratio: 1.0},
		ResourceAttrs:  make(map[string]interface{}),
		Metrics: MetricsConfig{
			Enabled:        false,
			ExportInterval: defaultExportPeriod,
		},
	}
}

// ApplyDefaults fills empty strings and durations; switches are kept.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = d.ServiceVersion
	}
	if c.Exporter == "" {
		c.Exporter = d.Exporter
	}
	if c.Sampler.Type == "" {
		c.Sampler = d.Sampler
	}
	if c.Metrics.ExportInterval <= 0 {
		c.Metrics.ExportInterval = d.Metrics.ExportInterval
	}
}

// Validate checks an enabled configuration. A disabled one is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServiceName, validation.Required),
		validation.Field(&c.Exporter, validation.Required, validation.In(ExporterStdout, ExporterNoop)),
		validation.Field(&c.Sampler),
	)
}

func (s SamplerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.Required,
			validation.In(SamplerAlwaysOn, SamplerAlwaysOff, SamplerRatio, SamplerParentBased)),
		validation.Field(&s.Ratio, validation.When(s.Type == SamplerRatio, validation.Min(0.0), validation.Max(1.0))),
	)
}
