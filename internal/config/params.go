package config

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// ComponentPrefix scopes the params handed to a pluggable component.
const ComponentPrefix = "component"

// Params holds a node parameter bag. Values are YAML scalars, lists or maps
// and may contain ${key} template expressions until the node is cloned.
type Params map[string]any

// UnmarshalYAML decodes into plain maps so nested blocks such as
// component: {type: X} stay map[string]any rather than Params.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = Params(raw)
	return nil
}

// Has reports whether key is set.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Get returns the raw value for key.
func (p Params) Get(key string) (any, bool) {
	value, ok := p[key]
	return value, ok
}

// String returns a value rendered as a string.
func (p Params) String(key string) (string, bool) {
	value, ok := p[key]
	if !ok || value == nil {
		return "", false
	}
	return model.ToString(value), true
}

// StringOr returns the string value or def.
func (p Params) StringOr(key, def string) string {
	if value, ok := p.String(key); ok && value != "" {
		return value
	}
	return def
}

// Bool returns a boolean value. Strings such as "true" are accepted.
func (p Params) Bool(key string) (bool, bool) {
	value, ok := p[key]
	if !ok {
		return false, false
	}
	return model.ToBool(value)
}

// Int returns an integer value.
func (p Params) Int(key string) (int64, bool) {
	value, ok := p[key]
	if !ok {
		return 0, false
	}
	return model.ToInt64(value)
}

// Float returns a numeric value.
func (p Params) Float(key string) (float64, bool) {
	value, ok := p[key]
	if !ok {
		return 0, false
	}
	return model.ToFloat64(value)
}

// Strings returns a list value. A comma separated string is split.
func (p Params) Strings(key string) ([]string, bool) {
	value, ok := p[key]
	if !ok || value == nil {
		return nil, false
	}
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, model.ToString(item))
		}
		return out, true
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, true
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, true
	default:
		return nil, false
	}
}

// Map returns a nested map value.
func (p Params) Map(key string) (map[string]any, bool) {
	value, ok := p[key]
	if !ok {
		return nil, false
	}
	return model.AsMap(value)
}

// List returns a list value.
func (p Params) List(key string) ([]any, bool) {
	value, ok := p[key]
	if !ok {
		return nil, false
	}
	list, ok := value.([]any)
	return list, ok
}

// Sub returns the params scoped under prefix. Both a nested map
// (component: {type: X}) and flat dotted keys (component.type: X) are
// supported; dotted keys win on conflict.
func (p Params) Sub(prefix string) Params {
	out := Params{}
	if nested, ok := p.Map(prefix); ok {
		for key, value := range nested {
			out[key] = model.CloneValue(value)
		}
	}
	dotted := prefix + "."
	for key, value := range p {
		if strings.HasPrefix(key, dotted) {
			out[strings.TrimPrefix(key, dotted)] = model.CloneValue(value)
		}
	}
	return out
}

// Component is Sub(ComponentPrefix).
func (p Params) Component() Params {
	return p.Sub(ComponentPrefix)
}

// Clone deep copies the bag.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	return Params(model.CloneMap(p))
}

// Keys returns the sorted keys.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Require returns a validation error naming the first missing key.
func (p Params) Require(node string, keys ...string) error {
	for _, key := range keys {
		value, ok := p[key]
		if !ok || value == nil || model.ToString(value) == "" {
			return detecterrors.NewValidationError(fmt.Sprintf("%s.params.%s", node, key), "required parameter is missing", nil)
		}
	}
	return nil
}
