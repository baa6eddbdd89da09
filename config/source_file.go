package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// FileSource reads one yaml/json/toml file. A missing file yields an empty layer.
type FileSource struct {
	path     string
	priority int
	found    bool
}

func NewFileSource(path string, priority int) *FileSource {
	return &FileSource{
		path:     path,
		priority: priority,
	}
}

func (s *FileSource) Name() string {
	return "file:" + s.path
}

func (s *FileSource) Priority() int {
	return s.priority
}

func (s *FileSource) Load() (map[string]interface{}, error) {
	s.found = false
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return make(map[string]interface{}), nil
		}
		return nil, fmt.Errorf("stat config file %s: %w", s.path, err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", s.path, err)
	}

	s.found = true
	return topLevel(v), nil
}

// topLevel returns the file as nested sections. AllSettings is avoided because it
// rebuilds the tree from dotted paths and would split a key such as "10.0.0.1".
func topLevel(v *viper.Viper) map[string]interface{} {
	result := make(map[string]interface{})
	for _, key := range v.AllKeys() {
		section, _, _ := strings.Cut(key, ".")
		if _, ok := result[section]; !ok {
			result[section] = v.Get(section)
		}
	}
	return result
}
