package config

import (
	"os"
	"path/filepath"
)

// LoaderBuilder assembles the conventional source stack:
// <path>/config.yaml, <path>/<env>.yaml, PREFIX_* variables, then flags.
type LoaderBuilder struct {
	configPath  string
	envPrefix   string
	envBindings map[string]string
	flags       interface{}
}

func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{envBindings: make(map[string]string)}
}

func (b *LoaderBuilder) WithConfigPath(path string) *LoaderBuilder {
	b.configPath = path
	return b
}

func (b *LoaderBuilder) WithEnvPrefix(prefix string) *LoaderBuilder {
	b.envPrefix = prefix
	return b
}

// WithEnvBinding maps a configuration key to an explicit variable name.
func (b *LoaderBuilder) WithEnvBinding(key, envKey string) *LoaderBuilder {
	b.envBindings[key] = envKey
	return b
}

// WithFlags adds a flags struct with `config` tags at the highest priority.
func (b *LoaderBuilder) WithFlags(flags interface{}) *LoaderBuilder {
	b.flags = flags
	return b
}

// Build creates the loader and loads it once.
func (b *LoaderBuilder) Build() (*Loader, error) {
	loader := NewLoader()

	if b.configPath != "" {
		loader.AddSource(NewFileSource(filepath.Join(b.configPath, "config.yaml"), PriorityBaseFile))
		if env := GetEnv(); env != "" {
			loader.AddSource(NewFileSource(filepath.Join(b.configPath, env+".yaml"), PriorityEnvFile))
		}
	}

	if b.envPrefix != "" || len(b.envBindings) > 0 {
		envSource := NewEnvSource(b.envPrefix, PriorityEnv)
		for key, envKey := range b.envBindings {
			envSource.AddBinding(key, envKey)
		}
		loader.AddSource(envSource)
	}

	if b.flags != nil {
		loader.AddSource(NewFlagSource(b.flags, PriorityFlags))
	}

	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// GetEnv returns APP_ENV, else ENV, else "dev".
func GetEnv() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "dev"
}
