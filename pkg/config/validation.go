package config

import (
	"reflect"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// Validator is implemented by configuration structs with cross-field
// rules. Validate runs after required-tag checks pass.
type Validator interface {
	Validate() error
}

func validate(cfg any, rv reflect.Value) error {
	err := walkPath(rv, "", func(f reflect.Value, sf reflect.StructField, path string) error {
		if sf.Tag.Get("required") == "true" && f.IsZero() {
			return sserr.Newf(sserr.CodeConfigurationRequired, "config: required field %q is empty", path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		if _, coded := sserr.AsError(err); coded {
			return err
		}
		return sserr.Wrap(err, sserr.CodeConfiguration, "config: validation failed")
	}
	return nil
}

// walkPath is walk with dotted field paths instead of env prefixes.
func walkPath(rv reflect.Value, path string, visit func(reflect.Value, reflect.StructField, string) error) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		f, sf := rv.Field(i), rt.Field(i)
		if !f.CanSet() {
			continue
		}
		p := sf.Name
		if path != "" {
			p = path + "." + sf.Name
		}
		if f.Kind() == reflect.Struct && sf.Type != durationType {
			if err := walkPath(f, p, visit); err != nil {
				return err
			}
			continue
		}
		if err := visit(f, sf, p); err != nil {
			return err
		}
	}
	return nil
}
