package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Loader merges every ConfigSource by priority and exposes the result through viper.
type Loader struct {
	sources      []ConfigSource
	mergedConfig map[string]interface{}
	v            *viper.Viper
	loadedFiles  []string
}

// NewLoader creates a loader without sources.
func NewLoader() *Loader {
	return &Loader{
		sources:      make([]ConfigSource, 0),
		mergedConfig: make(map[string]interface{}),
		v:            viper.New(),
		loadedFiles:  make([]string, 0),
	}
}

// AddSource registers a source. It takes effect on the next Load.
func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// Load reads every source from lowest to highest priority. Maps merge key by key,
// any other value replaces what an earlier source set.
func (l *Loader) Load() error {
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	l.mergedConfig = make(map[string]interface{})
	l.loadedFiles = l.loadedFiles[:0]
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("load source %s: %w", source.Name(), err)
		}

		if fileSource, ok := source.(*FileSource); ok && fileSource.found {
			l.loadedFiles = append(l.loadedFiles, fileSource.path)
		}

		mergeSource(l.mergedConfig, data)
	}

	l.syncToViper()
	return nil
}

// syncToViper rebuilds the viper instance one top-level section at a time, so keys
// below a section are never split on dots.
func (l *Loader) syncToViper() {
	l.v = viper.New()
	for key, value := range l.mergedConfig {
		l.v.Set(key, value)
	}
}

// mergeSource merges one source layer into dst. Top-level keys of a layer are
// paths ("redis.instances.main.addr"), keys inside nested maps are taken verbatim.
func mergeSource(dst, layer map[string]interface{}) {
	// shorter keys first so a deeper key can replace a scalar parent
	keys := make([]string, 0, len(layer))
	for key := range layer {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		parts := splitKey(strings.ToLower(key))
		if len(parts) == 0 {
			continue
		}

		current := dst
		for _, k := range parts[:len(parts)-1] {
			nested, ok := current[k].(map[string]interface{})
			if !ok {
				nested = make(map[string]interface{})
				current[k] = nested
			}
			current = nested
		}
		setValue(current, parts[len(parts)-1], layer[key])
	}
}

// setValue stores value under key, merging into an existing map when both sides are maps.
func setValue(dst map[string]interface{}, key string, value interface{}) {
	src, ok := toStringMap(value)
	if !ok {
		dst[key] = value
		return
	}

	existing, ok := dst[key].(map[string]interface{})
	if !ok {
		existing = make(map[string]interface{}, len(src))
		dst[key] = existing
	}
	for k, v := range src {
		setValue(existing, strings.ToLower(k), v)
	}
}

func toStringMap(value interface{}) (map[string]interface{}, bool) {
	switch m := value.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	}
	return nil, false
}

func splitKey(key string) []string {
	result := make([]string, 0)
	for _, part := range strings.Split(key, ".") {
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// Unmarshal decodes the whole configuration into v with the hooks viper uses.
// It reads the merged tree directly, since viper flattens map keys on dots.
func (l *Loader) Unmarshal(v interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(l.mergedConfig)
}

// UnmarshalKey decodes one section into v.
func (l *Loader) UnmarshalKey(key string, v interface{}) error {
	return l.v.UnmarshalKey(key, v)
}

func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns a copy of the merged tree.
func (l *Loader) AllSettings() map[string]interface{} {
	out := make(map[string]interface{}, len(l.mergedConfig))
	for key, value := range l.mergedConfig {
		setValue(out, key, value)
	}
	return out
}

// GetLoadedFiles lists the configuration files that existed and were read.
func (l *Loader) GetLoadedFiles() []string {
	return l.loadedFiles
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// Reload reads every source again.
func (l *Loader) Reload() error {
	return l.Load()
}
