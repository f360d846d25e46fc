package config

// Config is the full runtime configuration. Environment variables provide the
// base; an optional YAML file overlays it and may be hot-reloaded.
type Config struct {
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json console"`
	// Region is the fallback for events that carry no awsRegion.
	Region   string `yaml:"region" validate:"required"`
	HTTPAddr string `yaml:"http_addr" validate:"required"`

	ExcludedServices []string          `yaml:"excluded_services" validate:"dive,required"`
	DefaultTags      map[string]string `yaml:"default_tags"`
	OverrideTags     map[string]string `yaml:"override_tags"`

	Engine EngineConf `yaml:"engine"`
}

// EngineConf holds tunable concurrency settings for the HTTP host.
type EngineConf struct {
	Workers           int `yaml:"workers" validate:"min=1"`
	QueueDepth        int `yaml:"queue_depth" validate:"min=1"`
	DispatchTimeoutMs int `yaml:"dispatch_timeout_ms" validate:"min=1"`
}

// Defaults.
const (
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultRegion            = "us-east-1"
	DefaultHTTPAddr          = ":8080"
	DefaultExcludedServices  = "cloudtrail,logs"
	DefaultDefaultTags       = "AutoTagged=true,ManagedBy=AutoTagger"
	DefaultWorkers           = 8
	DefaultQueueDepth        = 1000
	DefaultDispatchTimeoutMs = 10000
)

func (c *Config) clone() *Config {
	out := *c
	out.ExcludedServices = append([]string(nil), c.ExcludedServices...)
	out.DefaultTags = cloneMap(c.DefaultTags)
	out.OverrideTags = cloneMap(c.OverrideTags)
	return &out
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
