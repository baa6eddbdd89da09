package config

// ConfigSource is one layer of configuration (file, environment, flags).
type ConfigSource interface {
	// Name identifies the source in errors and logs.
	Name() string

	// Priority orders sources; higher values override lower ones.
	// Conventional values: config.yaml 10, <env>.yaml 20, environment 50, flags 100.
	Priority() int

	// Load returns values keyed by dot-separated paths, such as "admission.default_policy".
	// A map value is merged as is, so keys inside it may contain dots.
	Load() (map[string]interface{}, error)
}

const (
	PriorityBaseFile = 10
	PriorityEnvFile  = 20
	PriorityEnv      = 50
	PriorityFlags    = 100
)
