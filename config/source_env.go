package config

import (
	"os"
	"strings"
)

// EnvSource reads environment variables carrying a prefix.
//
// Without bindings, PREFIX_REDIS_INSTANCES_MAIN_ADDR becomes "redis.instances.main.addr".
// Keys whose segments contain underscores (default_policy) need an explicit binding.
type EnvSource struct {
	prefix   string
	priority int
	bindings map[string]string // config key -> env name without prefix
}

func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		bindings: make(map[string]string),
	}
}

// AddBinding maps key to envKey, e.g. AddBinding("admission.default_policy", "DEFAULT_POLICY").
func (s *EnvSource) AddBinding(key, envKey string) {
	s.bindings[key] = envKey
}

func (s *EnvSource) Name() string {
	return "env:" + s.prefix
}

func (s *EnvSource) Priority() int {
	return s.priority
}

func (s *EnvSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})
	if s.prefix == "" && len(s.bindings) == 0 {
		return result, nil
	}

	prefix := s.prefix + "_"
	if s.prefix != "" {
		for _, env := range os.Environ() {
			key, value, ok := strings.Cut(env, "=")
			if !ok || !strings.HasPrefix(key, prefix) {
				continue
			}
			configKey := strings.ToLower(strings.TrimPrefix(key, prefix))
			result[strings.ReplaceAll(configKey, "_", ".")] = value
		}
	}

	// bindings win over the generic mapping
	for key, envKey := range s.bindings {
		fullEnvKey := envKey
		if s.prefix != "" && !strings.HasPrefix(envKey, prefix) {
			fullEnvKey = prefix + envKey
		}
		if value, ok := os.LookupEnv(fullEnvKey); ok && value != "" {
			result[key] = value
			delete(result, strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(fullEnvKey, prefix)), "_", "."))
		}
	}

	return result, nil
}
