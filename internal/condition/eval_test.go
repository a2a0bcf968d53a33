package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherScope() map[string]any {
	return map[string]any{
		"weather": map[string]any{
			"isRainy":     true,
			"temperature": 12.5,
			"condition":   "rain",
			"wind":        map[string]any{"speed": 30},
		},
		"news": map[string]any{
			"count": 0,
		},
	}
}

func TestEvalBarePath(t *testing.T) {
	got, err := Eval("weather.isRainy", weatherScope())
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvalMissingPathIsFalse(t *testing.T) {
	got, err := Eval("weather.isSnowy", weatherScope())
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Eval("traffic.isHeavy", weatherScope())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalComparisons(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"weather.temperature < 15", true},
		{"weather.temperature >= 12.5", true},
		{"weather.temperature > 15", false},
		{"weather.condition == 'rain'", true},
		{"weather.condition != 'snow'", true},
		{"weather.wind.speed == 30", true},
		{"news.count == 0", true},
		{"news.count", false},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Eval(tc.expr, weatherScope())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvalBooleanOperators(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"!weather.isRainy", false},
		{"weather.isRainy && weather.temperature < 15", true},
		{"weather.isRainy && news.count", false},
		{"news.count || weather.isRainy", true},
		{"!(weather.isRainy && news.count)", true},
		{"weather.condition == 'snow' || weather.temperature < 15", true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Eval(tc.expr, weatherScope())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvalLiterals(t *testing.T) {
	got, err := Eval("true", nil)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Eval("false || true", nil)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Eval("null", nil)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalRejectsMalformed(t *testing.T) {
	for _, expr := range []string{
		"",
		"weather.isRainy &&",
		"weather.isRainy ||| true",
		"(weather.isRainy",
		"weather.temperature = 10",
		"weather.condition < 'rain'",
		"weather.isRainy; drop",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Eval(expr, weatherScope())
			assert.Error(t, err)
		})
	}
}
