package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/drone/envsubst"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// wholeReference matches a string that is exactly one ${key} expression;
// such values are replaced by the typed value rather than its string form.
var wholeReference = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// SubstituteParams expands ${key} expressions in every string of params,
// recursing into lists and maps. A referenced key missing from values is
// an error. params is not modified.
func SubstituteParams(params config.Params, values map[string]any) (config.Params, error) {
	if params == nil {
		return nil, nil
	}
	out := make(config.Params, len(params))
	for _, key := range params.Keys() {
		value, err := substituteValue(params[key], values)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}

func substituteValue(value any, values map[string]any) (any, error) {
	if m, ok := model.AsMap(value); ok && m != nil {
		value = m
	}
	switch v := value.(type) {
	case string:
		return substituteString(v, values)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			expanded, err := substituteValue(item, values)
			if err != nil {
				return nil, err
			}
			out[key] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			expanded, err := substituteValue(item, values)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return model.CloneValue(v), nil
	}
}

func substituteString(s string, values map[string]any) (any, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	if match := wholeReference.FindStringSubmatch(s); match != nil {
		value, ok := values[match[1]]
		if !ok {
			return nil, fmt.Errorf("template key %q is not defined", match[1])
		}
		return model.CloneValue(value), nil
	}

	missing := map[string]struct{}{}
	expanded, err := envsubst.Eval(s, func(key string) string {
		value, ok := values[key]
		if !ok {
			missing[key] = struct{}{}
			return ""
		}
		return model.ToString(value)
	})
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", s, err)
	}
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for key := range missing {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("template keys %v are not defined", keys)
	}
	return expanded, nil
}

// CloneSubgraph copies root and everything it depends on into a new graph,
// substituting values into every node's params. The source graph is never
// modified.
func CloneSubgraph(graph *Graph, root string, values map[string]any) (*Graph, error) {
	closure, err := graph.Closure(root)
	if err != nil {
		return nil, err
	}

	specs := make([]config.PlanNode, 0, len(closure))
	for _, name := range closure {
		spec := graph.Nodes[name].Spec.Clone()
		params, err := SubstituteParams(spec.Params, values)
		if err != nil {
			return nil, detecterrors.NewValidationError(name+".params", err.Error(), err)
		}
		spec.Params = params
		specs = append(specs, spec)
	}

	return BuildGraph(specs)
}
