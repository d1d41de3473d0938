package config

import (
	"fmt"
	"sort"

	"github.com/spf13/cast"

	"github.com/conneroisu/smol/internal/errors"
	"github.com/conneroisu/smol/internal/lang"
)

// Env converts the configured params into the parameter environment pages
// render against.
func (c *Config) Env() (lang.Env, error) {
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make(lang.Env, len(c.Params))
	for _, k := range keys {
		node, err := ToNode(c.Params[k])
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("params.%s: %v", k, err))
		}
		env[k] = node
	}
	return env, nil
}

// ToNode converts a decoded configuration value into a template value.
// Strings stay strings, other scalars are formatted as strings, slices
// become lists and maps become objects.
func ToNode(value interface{}) (lang.Node, error) {
	switch v := value.(type) {
	case nil:
		return lang.Str(""), nil
	case string:
		return lang.Str(v), nil
	case []interface{}:
		return toList(v)
	case []string:
		return lang.Strings(v...), nil
	case map[string]interface{}:
		return toObject(v)
	case map[interface{}]interface{}:
		m, err := cast.ToStringMapE(v)
		if err != nil {
			return nil, err
		}
		return toObject(m)
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("unsupported value %v of type %T", v, v)
		}
		return lang.Str(s), nil
	}
}

func toList(values []interface{}) (lang.Node, error) {
	elems := make([]lang.Node, len(values))
	for i, v := range values {
		node, err := ToNode(v)
		if err != nil {
			return nil, err
		}
		elems[i] = node
	}
	return &lang.List{Elements: elems}, nil
}

func toObject(m map[string]interface{}) (lang.Node, error) {
	fields := make(map[string]lang.Node, len(m))
	for k, v := range m {
		node, err := ToNode(v)
		if err != nil {
			return nil, err
		}
		fields[k] = node
	}
	return &lang.Object{Fields: fields}, nil
}
