// Package config loads validator and service configuration from struct
// tag defaults, an optional YAML or JSON file, and environment variables,
// in that order of increasing priority.
//
// # Struct Tags
//
//   - `env:"NAME"` maps the field to an environment variable. On a nested
//     struct the tag becomes a prefix for the child fields.
//   - `envDefault:"value"` is applied when the field is still zero.
//   - `required:"true"` fails loading if the field is zero afterwards.
//
// File values are decoded through the `yaml` or `json` tags.
//
// # Usage
//
//	type ServeConfig struct {
//	    Addr    string        `env:"ADDR" envDefault:":8080" yaml:"addr"`
//	    Leeway  time.Duration `env:"LEEWAY" envDefault:"1m" yaml:"leeway"`
//	    Issuers []string      `env:"ISSUERS" yaml:"issuers" required:"true"`
//	}
//
//	cfg := config.MustLoad[ServeConfig](config.New().WithEnvPrefix("JWTCHECK").WithFile("jwtcheck.yaml"))
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Loader resolves configuration in layers. It is not safe for concurrent
// use.
type Loader struct {
	envPrefix string
	filePath  string
}

// New returns a Loader reading environment variables only.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix prepends PREFIX_ to every env tag. The prefix is
// uppercased.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets a .yaml, .yml or .json file to read. A missing file is
// not an error. Paths containing ".." are rejected by Load.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load fills cfg, which must be a non-nil pointer to a struct, then
// checks required fields and calls Validate when cfg implements
// [Validator].
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return sserr.New(sserr.CodeConfiguration, "config: Load requires a non-nil pointer to a struct")
	}
	root := rv.Elem()

	err := walk(root, "", func(f reflect.Value, sf reflect.StructField, _ string) error {
		def, ok := sf.Tag.Lookup("envDefault")
		if !ok || !f.IsZero() {
			return nil
		}
		if err := setField(f, def); err != nil {
			return sserr.Wrapf(err, sserr.CodeConfiguration, "config: bad default for field %q", sf.Name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	err = walk(root, l.envPrefix, func(f reflect.Value, sf reflect.StructField, prefix string) error {
		name := sf.Tag.Get("env")
		if name == "" {
			return nil
		}
		key := joinKey(prefix, name)
		val, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		if err := setField(f, val); err != nil {
			return sserr.Wrapf(err, sserr.CodeConfiguration, "config: bad value in %s for field %q", key, sf.Name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return validate(cfg, root)
}

// MustLoad loads a T or panics. Use it from main.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeConfiguration, "config: file path must not contain \"..\"")
	}

	data, err := os.ReadFile(l.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeConfiguration, "config: cannot read %q", l.filePath)
	}

	var decodeErr error
	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		decodeErr = yaml.Unmarshal(data, cfg)
	case ".json":
		decodeErr = json.Unmarshal(data, cfg)
	default:
		return sserr.Newf(sserr.CodeConfiguration, "config: unsupported file extension %q", ext)
	}
	if decodeErr != nil {
		return sserr.Wrapf(decodeErr, sserr.CodeConfiguration, "config: cannot parse %q", l.filePath)
	}
	return nil
}

// walk calls visit for every settable leaf field of rv. Nested structs
// are descended into with their env tag appended to prefix.
func walk(rv reflect.Value, prefix string, visit func(reflect.Value, reflect.StructField, string) error) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		f, sf := rv.Field(i), rt.Field(i)
		if !f.CanSet() {
			continue
		}
		if f.Kind() == reflect.Struct && sf.Type != durationType {
			next := prefix
			if tag := sf.Tag.Get("env"); tag != "" {
				next = joinKey(prefix, tag)
			}
			if err := walk(f, next, visit); err != nil {
				return err
			}
			continue
		}
		if err := visit(f, sf, prefix); err != nil {
			return err
		}
	}
	return nil
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// setField parses value into f. Strings, bools, signed integers,
// float64, time.Duration and comma-separated string slices are
// supported.
func setField(f reflect.Value, value string) error {
	if f.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		f.SetInt(int64(d))
		return nil
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, f.Type().Bits())
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Float32, reflect.Float64:
		x, err := strconv.ParseFloat(value, f.Type().Bits())
		if err != nil {
			return err
		}
		f.SetFloat(x)
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", f.Type().Elem().Kind())
		}
		var parts []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		s := reflect.MakeSlice(f.Type(), len(parts), len(parts))
		for i, p := range parts {
			s.Index(i).SetString(p)
		}
		f.Set(s)
	default:
		return fmt.Errorf("unsupported field type %s", f.Kind())
	}
	return nil
}
