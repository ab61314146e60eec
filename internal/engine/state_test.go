package engine

import (
	"testing"

	"github.com/matthewbaird/caseforms/internal/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_FullPass(t *testing.T) {
	def, err := form.LoadFile("../form/testdata/intake.json")
	require.NoError(t, err)
	e, _ := quietEngine(t)

	answers := map[string]any{"hours": 1, "minutes": 30, "size": 1, "children": 3, "wages": 100}
	st := e.Evaluate(input(def, answers), &Subject{HeadOfHousehold: true})

	assert.Empty(t, st.Removed)
	assert.Equal(t, []string{"children", "wages"}, st.Disabled)
	assert.Equal(t, "NONE", st.Initial["income"])
	assert.Equal(t, "1 hour 30 minutes", st.Autofill["duration"])
	assert.Equal(t, 0, st.AutofillRules["duration"])
	assert.Equal(t, ResolvedBounds{Min: 1.0, Max: 12.0}, st.Bounds["size"])
	require.Len(t, st.Violations, 1)
	assert.Equal(t, "name", st.Violations[0].LinkID)
	assert.Equal(t, CodeRequired, st.Violations[0].Code)
}

func TestEvaluate_PrunesForSubject(t *testing.T) {
	def, err := form.LoadFile("../form/testdata/intake.json")
	require.NoError(t, err)
	e, _ := quietEngine(t)

	answers := map[string]any{"name": "Ada", "size": 40}
	st := e.Evaluate(input(def, answers), &Subject{InHousehold: true})

	assert.Equal(t, []string{"household", "size", "children"}, st.Removed)
	assert.NotContains(t, st.Answers, "size")
	assert.NotContains(t, st.Bounds, "size")
	assert.Empty(t, st.Violations)
	assert.Len(t, def.Items, 7, "input definition untouched")
}

func TestEvaluate_Deterministic(t *testing.T) {
	def, err := form.LoadFile("../form/testdata/intake.json")
	require.NoError(t, err)
	e, _ := quietEngine(t)
	answers := map[string]any{"hours": 2, "income": "WAGES", "wages": 10}
	first := e.Evaluate(input(def, answers), nil)
	for range 5 {
		assert.Equal(t, first, e.Evaluate(input(def, answers), nil))
	}
}

func TestEvaluate_AutofillDrivesEnableWhen(t *testing.T) {
	def := &form.Definition{ID: "d", Items: []*form.Item{
		{LinkID: "flag", Kind: form.KindBoolean,
			AutofillValues: []form.AutofillRule{{Value: true}}},
		{LinkID: "detail", Kind: form.KindString,
			EnableWhen: []form.Condition{{Question: "flag", Operator: form.OpEqual, Answer: true}}},
		{LinkID: "note", Kind: form.KindString,
			EnableWhen: []form.Condition{{Question: "detail", Operator: form.OpExists, Answer: false}},
			AutofillValues: []form.AutofillRule{{Value: "fill"}}},
	}}
	e, _ := quietEngine(t)

	st := e.Evaluate(input(def, nil), nil)
	assert.Equal(t, true, st.Answers["flag"])
	assert.Empty(t, st.Disabled)
	assert.Equal(t, []string{"flag", "detail", "note"}, st.Enabled)
	assert.Equal(t, "fill", st.Autofill["note"])
}

func TestEvaluate_AutofillDisablesLaterItem(t *testing.T) {
	def := &form.Definition{ID: "d", Items: []*form.Item{
		{LinkID: "mode", Kind: form.KindString,
			AutofillValues: []form.AutofillRule{{Value: "auto"}}},
		{LinkID: "manual", Kind: form.KindString,
			EnableWhen:     []form.Condition{{Question: "mode", Operator: form.OpNotEqual, Answer: "auto"}},
			AutofillValues: []form.AutofillRule{{Value: "x"}}},
	}}
	e, _ := quietEngine(t)

	st := e.Evaluate(input(def, nil), nil)
	assert.Equal(t, []string{"manual"}, st.Disabled)
	assert.NotContains(t, st.Autofill, "manual")
	assert.NotContains(t, st.Answers, "manual")
}

func TestEvaluate_AlwaysInitialKeepsLaterAnswers(t *testing.T) {
	def := &form.Definition{ID: "d", Items: []*form.Item{
		{LinkID: "status", Kind: form.KindString,
			Initial: &form.Initial{Value: "new", Behavior: form.InitialAlways}},
	}}
	e, _ := quietEngine(t)

	opened := input(def, map[string]any{"status": "closed"})
	opened.Initialize = true
	assert.Equal(t, "new", e.Evaluate(opened, nil).Answers["status"])

	st := e.Evaluate(input(def, map[string]any{"status": "closed"}), nil)
	assert.Equal(t, "closed", st.Answers["status"])
	assert.NotContains(t, st.Initial, "status")

	st = e.Evaluate(input(def, nil), nil)
	assert.Equal(t, "new", st.Answers["status"])
}
