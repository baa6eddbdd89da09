package config

import (
	"fmt"
	"reflect"
	"strings"
)

// FlagSource maps a command line flags struct onto configuration keys through `config` tags.
// Zero-valued fields are skipped so unset flags never override a file or the environment.
//
//	type ServeFlags struct {
//	    Addr   string `config:"server.addr"`
//	    Policy string `config:"admission.default_policy"`
//	}
type FlagSource struct {
	flags    interface{}
	priority int
}

func NewFlagSource(flags interface{}, priority int) *FlagSource {
	return &FlagSource{
		flags:    flags,
		priority: priority,
	}
}

func (s *FlagSource) Name() string {
	return "flags"
}

func (s *FlagSource) Priority() int {
	return s.priority
}

func (s *FlagSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})
	if s.flags == nil {
		return result, nil
	}

	v := reflect.ValueOf(s.flags)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return result, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("flags must be a struct or pointer to struct, got %s", v.Kind())
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanInterface() || field.IsZero() {
			continue
		}

		// `config:"a.b,c.d"` sets several keys
		for _, key := range strings.Split(t.Field(i).Tag.Get("config"), ",") {
			key = strings.TrimSpace(key)
			if key == "" || key == "-" {
				continue
			}
			result[key] = field.Interface()
		}
	}

	return result, nil
}
