package form

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_JSONAndYAMLAgree(t *testing.T) {
	fromJSON, err := LoadFile("testdata/intake.json")
	require.NoError(t, err)
	fromYAML, err := LoadFile("testdata/intake.yaml")
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromYAML)

	assert.Equal(t, "intake", fromJSON.ID)
	require.Len(t, fromJSON.Items, 7)
	household, path := fromJSON.Find("children")
	require.NotNil(t, household)
	require.Len(t, path, 1)
	assert.Equal(t, "household", path[0].LinkID)
	assert.Equal(t, OpGreaterThan, household.EnableWhen[0].Operator)
	assert.Equal(t, 1.0, household.EnableWhen[0].Answer)
}

func TestDecode_LegacyKeys(t *testing.T) {
	doc := `{
	  "id": "legacy",
	  "item": [
	    { "linkId": "a", "kind": "INTEGER" },
	    { "linkId": "b", "kind": "INTEGER",
	      "enableOperator": "OR",
	      "enableWhen": [ { "referencedLinkId": "a", "operator": "EQUAL", "comparandLiteral": 1 } ],
	      "autofillValues": [ { "expression": "a * 2", "condition": [ { "referencedLinkId": "a", "operator": "EXISTS" } ] } ],
	      "bounds": { "min": 0, "max": "a + 10" } },
	    { "linkId": "g", "kind": "GROUP", "children": [ { "linkId": "c", "kind": "STRING" } ] }
	  ]
	}`
	def, err := Decode(strings.NewReader(doc), FormatJSON)
	require.NoError(t, err)

	b, _ := def.Find("b")
	require.NotNil(t, b)
	assert.Equal(t, BehaviorAny, b.EnableBehavior)
	assert.Equal(t, "a", b.EnableWhen[0].Question)
	assert.Equal(t, 1.0, b.EnableWhen[0].Answer)
	assert.Equal(t, "a * 2", b.AutofillValues[0].ValueExpression)
	assert.Equal(t, OpExists, b.AutofillValues[0].AutofillWhen[0].Operator)
	assert.Equal(t, 0.0, b.Bounds.Min.Value)
	assert.Equal(t, "a + 10", b.Bounds.Max.Expression)

	c, path := def.Find("c")
	require.NotNil(t, c)
	assert.Equal(t, "g", path[0].LinkID)
}

func TestDecode_ShapeErrors(t *testing.T) {
	cases := map[string]string{
		"unknown kind":     `{"item": [{"linkId": "a", "kind": "SLIDER"}]}`,
		"missing linkId":   `{"item": [{"kind": "STRING"}]}`,
		"unknown field":    `{"item": [{"linkId": "a", "kind": "STRING", "colour": "red"}]}`,
		"unknown operator": `{"item": [{"linkId": "a", "kind": "STRING", "enableWhen": [{"question": "a", "operator": "LIKE"}]}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(doc), FormatJSON)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.NotEmpty(t, verr.Problems)
			assert.Contains(t, verr.Problems[0].Message, "shape:")
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := DecodeBytes([]byte(`{"item": [`), FormatJSON)
	assert.Error(t, err)
	_, err = DecodeBytes([]byte(`[1, 2]`), FormatJSON)
	assert.Error(t, err)
	_, err = DecodeBytes([]byte("item: [\n"), FormatYAML)
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("a/b.YML"))
	assert.Equal(t, FormatYAML, FormatFromPath("def.yaml"))
	assert.Equal(t, FormatJSON, FormatFromPath("def.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("def"))
}
