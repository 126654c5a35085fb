package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// envPrefix is prepended to every `env` tag in the config tree, so a field
// tagged `env:"SERVER_ADDR"` reads QUESTPHONE_SERVER_ADDR.
const envPrefix = "QUESTPHONE_"

var durationType = reflect.TypeOf(time.Duration(0))

// loadFromEnv overlays environment variables onto cfg. Fields without an
// `env` tag, and variables that are unset or empty, are left alone.
func loadFromEnv(cfg *Config) error {
	return overlayEnv(reflect.ValueOf(cfg).Elem())
}

func overlayEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := overlayEnv(field); err != nil {
				return err
			}
			continue
		}
		tag := t.Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}
		name := envPrefix + tag
		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			continue
		}
		if err := assignEnvValue(field, raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// assignEnvValue parses raw into the field according to its Go type.
// Durations accept time.ParseDuration syntax, string slices are
// comma-separated, and string maps use key=value,key=value form.
func assignEnvValue(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse bool %q: %w", raw, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse int %q: %w", raw, err)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse uint %q: %w", raw, err)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse float %q: %w", raw, err)
		}
		field.SetFloat(f)
	case reflect.Slice:
		return assignEnvSlice(field, raw)
	case reflect.Map:
		return assignEnvMap(field, raw)
	default:
		return fmt.Errorf("cannot populate %s from an environment variable", field.Type())
	}
	return nil
}

func assignEnvSlice(field reflect.Value, raw string) error {
	if field.Type().Elem().Kind() != reflect.String {
		return fmt.Errorf("cannot populate %s from an environment variable", field.Type())
	}
	out := reflect.MakeSlice(field.Type(), 0, 0)
	for _, part := range strings.Split(raw, ",") {
		out = reflect.Append(out, reflect.ValueOf(strings.TrimSpace(part)).Convert(field.Type().Elem()))
	}
	field.Set(out)
	return nil
}

func assignEnvMap(field reflect.Value, raw string) error {
	t := field.Type()
	if t.Key().Kind() != reflect.String || t.Elem().Kind() != reflect.String {
		return fmt.Errorf("cannot populate %s from an environment variable", t)
	}
	out := reflect.MakeMap(t)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return fmt.Errorf("map entry %q is not key=value", pair)
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), reflect.ValueOf(v).Convert(t.Elem()))
	}
	field.Set(out)
	return nil
}
