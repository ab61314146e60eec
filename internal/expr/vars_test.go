package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectVariables(t *testing.T) {
	cases := map[string][]string{
		"1 + 2":                            {},
		"a + b * a":                        {"a", "b"},
		"-(x)":                             {"x"},
		"formatMinutes(h * 60 + m)":        {"h", "m"},
		"sum(a, max(b, `c d`), income.x)":  {"a", "b", "c d", "income.x"},
		`concat("literal a", z)`:           {"z"},
	}
	for src, want := range cases {
		got, err := CollectVariables(src)
		require.NoError(t, err, src)
		assert.Equal(t, want, got, src)
	}
}

func TestCollectVariables_ParseError(t *testing.T) {
	_, err := CollectVariables("a +")
	assert.Error(t, err)
}

// Every identifier an evaluation reports as missing must have been
// collected up front.
func TestCollectVariables_CoversEvaluation(t *testing.T) {
	for _, src := range []string{
		"a + b",
		"round(sum(a, b) / c, d)",
		`coalesce(x, concat(y, "-", -z))`,
	} {
		node := MustParse(src)
		vars := Variables(node)
		_, missing, err := NewEvaluator().EvaluateTrace(node, Context{"c": 1})
		require.NoError(t, err, src)
		for _, name := range missing {
			assert.Contains(t, vars, name, src)
		}
	}
}
