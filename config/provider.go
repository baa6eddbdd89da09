package config

import (
	"fmt"

	"github.com/samber/do/v2"
)

// ProvideLoaderOptions configures ProvideLoader.
type ProvideLoaderOptions struct {
	ConfigPath  string            // directory holding config.yaml and <env>.yaml
	EnvPrefix   string            // e.g. "ADMISSION"
	EnvBindings map[string]string // config key -> variable name without prefix
	Flags       interface{}       // struct with `config` tags
}

// ProvideLoader returns the do provider of *Loader. The loader has no dependencies.
//
//	do.Provide(injector, config.ProvideLoader(config.ProvideLoaderOptions{
//	    ConfigPath: "./configs",
//	    EnvPrefix:  "ADMISSION",
//	}))
func ProvideLoader(opts ProvideLoaderOptions) func(do.Injector) (*Loader, error) {
	return func(do.Injector) (*Loader, error) {
		if opts.ConfigPath == "" {
			opts.ConfigPath = "./configs"
		}

		b := NewLoaderBuilder().
			WithConfigPath(opts.ConfigPath).
			WithEnvPrefix(opts.EnvPrefix).
			WithFlags(opts.Flags)
		for key, envKey := range opts.EnvBindings {
			b.WithEnvBinding(key, envKey)
		}

		loader, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("config loader build failed: %w", err)
		}
		return loader, nil
	}
}

// ProvideLoaderValue registers an already built loader.
func ProvideLoaderValue(loader *Loader) func(do.Injector) (*Loader, error) {
	return func(do.Injector) (*Loader, error) {
		return loader, nil
	}
}
