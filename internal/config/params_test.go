package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

func TestParamsAccessors(t *testing.T) {
	t.Parallel()

	p := Params{
		"dryRun":  "true",
		"limit":   3,
		"ratio":   "0.5",
		"idKeys":  []any{"country", "browser"},
		"csv":     "a, b",
		"filters": map[string]any{"k": "v"},
		"nothing": nil,
		"name":    "detector",
	}

	dry, ok := p.Bool("dryRun")
	require.True(t, ok)
	require.True(t, dry)

	limit, ok := p.Int("limit")
	require.True(t, ok)
	require.Equal(t, int64(3), limit)

	ratio, ok := p.Float("ratio")
	require.True(t, ok)
	require.InDelta(t, 0.5, ratio, 1e-9)

	keys, ok := p.Strings("idKeys")
	require.True(t, ok)
	require.Equal(t, []string{"country", "browser"}, keys)

	csv, _ := p.Strings("csv")
	require.Equal(t, []string{"a", "b"}, csv)

	_, ok = p.String("nothing")
	require.False(t, ok)
	require.Equal(t, "fallback", p.StringOr("missing", "fallback"))

	filters, ok := p.Map("filters")
	require.True(t, ok)
	require.Equal(t, "v", filters["k"])
}

func TestParamsComponentMergesNestedAndDotted(t *testing.T) {
	t.Parallel()

	p := Params{
		"component":      map[string]any{"type": "THRESHOLD", "min": 1},
		"component.min":  5,
		"component.max":  10,
		"componentless":  true,
		"anomaly.metric": "views",
	}

	component := p.Component()
	require.Equal(t, Params{"type": "THRESHOLD", "min": 5, "max": 10}, component)
	require.Equal(t, Params{"metric": "views"}, p.Sub("anomaly"))
}

func TestParamsRequire(t *testing.T) {
	t.Parallel()

	p := Params{"type": "THRESHOLD", "empty": ""}
	require.NoError(t, p.Require("detector", "type"))

	err := p.Require("detector", "type", "empty")
	var validationErr *detecterrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "detector.params.empty", validationErr.Field)
}
