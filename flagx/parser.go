// Package flagx binds cobra flags to tagged structs.
//
//	type CheckFlags struct {
//	    Policy string        `flag:"policy,p" usage:"policy id" required:"true"`
//	    Count  int           `flag:"count,n" usage:"decisions to run" default:"1"`
//	    Every  time.Duration `flag:"every" usage:"pause between decisions"`
//	}
//
// BindFlags registers the flags from the tags; ParseFlags copies the parsed values back.
// Fields may also carry a `config` tag so the same struct feeds config.FlagSource.
package flagx

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	errNotStructPointer = errors.New("target must be a pointer to struct")
	durationType        = reflect.TypeOf(time.Duration(0))
)

// ParseFlags copies the value of every `flag`-tagged field's flag into target.
func ParseFlags(cmd *cobra.Command, target interface{}) error {
	v, err := structValue(target)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		name, _ := flagNames(t.Field(i))
		if name == "" {
			continue
		}
		if err := setFieldValue(flags, field, name); err != nil {
			return fmt.Errorf("parse field %s: %w", t.Field(i).Name, err)
		}
	}
	return nil
}

func setFieldValue(flags *pflag.FlagSet, field reflect.Value, name string) error {
	if field.Type() == durationType {
		val, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(val))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		val, err := flags.GetString(name)
		if err != nil {
			return err
		}
		field.SetString(val)
	case reflect.Int:
		val, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(val))
	case reflect.Int64:
		val, err := flags.GetInt64(name)
		if err != nil {
			return err
		}
		field.SetInt(val)
	case reflect.Bool:
		val, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		field.SetBool(val)
	case reflect.Float64:
		val, err := flags.GetFloat64(name)
		if err != nil {
			return err
		}
		field.SetFloat(val)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", field.Type().Elem().Kind())
		}
		val, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(val))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// BindFlags registers one flag per `flag`-tagged field of target, honoring the usage,
// default and required tags.
func BindFlags(cmd *cobra.Command, target interface{}) error {
	v, err := structValue(target)
	if err != nil {
		return err
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, short := flagNames(sf)
		if name == "" || !sf.IsExported() {
			continue
		}
		if err := registerFlag(cmd.Flags(), sf.Type, name, short, sf.Tag.Get("usage"), sf.Tag.Get("default")); err != nil {
			return fmt.Errorf("bind field %s: %w", sf.Name, err)
		}
		if sf.Tag.Get("required") == "true" {
			if err := cmd.MarkFlagRequired(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func registerFlag(flags *pflag.FlagSet, typ reflect.Type, name, short, usage, def string) error {
	if typ == durationType {
		d, err := parseDefault(def, time.Duration(0), time.ParseDuration)
		if err != nil {
			return err
		}
		flags.DurationP(name, short, d, usage)
		return nil
	}

	switch typ.Kind() {
	case reflect.String:
		flags.StringP(name, short, def, usage)
	case reflect.Int:
		d, err := parseDefault(def, 0, strconv.Atoi)
		if err != nil {
			return err
		}
		flags.IntP(name, short, d, usage)
	case reflect.Int64:
		d, err := parseDefault(def, int64(0), func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
		if err != nil {
			return err
		}
		flags.Int64P(name, short, d, usage)
	case reflect.Bool:
		d, err := parseDefault(def, false, strconv.ParseBool)
		if err != nil {
			return err
		}
		flags.BoolP(name, short, d, usage)
	case reflect.Float64:
		d, err := parseDefault(def, 0.0, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
		if err != nil {
			return err
		}
		flags.Float64P(name, short, d, usage)
	case reflect.Slice:
		if typ.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", typ.Elem().Kind())
		}
		var d []string
		if def != "" {
			d = strings.Split(def, ",")
		}
		flags.StringSliceP(name, short, d, usage)
	default:
		return fmt.Errorf("unsupported field type: %s", typ.Kind())
	}
	return nil
}

func parseDefault[T any](def string, zero T, parse func(string) (T, error)) (T, error) {
	if def == "" {
		return zero, nil
	}
	v, err := parse(def)
	if err != nil {
		return zero, fmt.Errorf("invalid default %q: %w", def, err)
	}
	return v, nil
}

// flagNames splits `flag:"name,n"`.
func flagNames(sf reflect.StructField) (name, short string) {
	tag := sf.Tag.Get("flag")
	if tag == "" {
		return "", ""
	}
	parts := strings.SplitN(tag, ",", 2)
	name = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		short = strings.TrimSpace(parts[1])
	}
	return name, short
}

func structValue(target interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, errNotStructPointer
	}
	return v.Elem(), nil
}
