package integrity

import (
	"errors"
	"strings"
	"testing"

	"github.com/matthewbaird/caseforms/internal/depindex"
	"github.com/matthewbaird/caseforms/internal/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(items []*form.Item) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.LinkID)
	}
	return out
}

func definition() *form.Definition {
	return &form.Definition{ID: "d", Items: []*form.Item{
		{LinkID: "y", Kind: form.KindInteger, Label: "Minutes"},
		{LinkID: "section", Kind: form.KindGroup, Label: "Visit", Items: []*form.Item{
			{LinkID: "x", Kind: form.KindString, Label: "Duration",
				AutofillValues: []form.AutofillRule{{ValueExpression: "formatMinutes(y)"}}},
			{LinkID: "note", Kind: form.KindString, Label: "Note",
				EnableWhen: []form.Condition{{Question: "x", Operator: form.OpExists}}},
		}},
		{LinkID: "cap", Kind: form.KindInteger,
			Bounds: &form.Bounds{Max: &form.BoundValue{LinkID: "y"}}},
		{LinkID: "free", Kind: form.KindBoolean},
	}}
}

func TestCanDelete_ReferencedByAutofill(t *testing.T) {
	def := definition()
	idx := depindex.Build(def)
	y, _ := def.Find("y")

	d := CanDelete(y, idx)
	assert.False(t, d.Allowed)
	assert.Equal(t, []string{"x"}, names(d.Blockers.Autofill))
	assert.Equal(t, []string{"cap"}, names(d.Blockers.Bound))
	assert.Empty(t, d.Blockers.EnableWhen)

	var v *Violation
	require.True(t, errors.As(d.Err(), &v))
	assert.Equal(t, `cannot delete "y": referenced by 1 autofill, 1 bound rule(s)`, v.Error())
}

func TestCanDelete_Unreferenced(t *testing.T) {
	def := definition()
	idx := depindex.Build(def)
	free, _ := def.Find("free")
	d := CanDelete(free, idx)
	assert.True(t, d.Allowed)
	assert.NoError(t, d.Err())
}

// Allowed is false exactly when some dependents list is non-empty.
func TestCanDelete_AllowedIffNoDependents(t *testing.T) {
	def := definition()
	idx := depindex.Build(def)
	def.Walk(func(it *form.Item, _ []*form.Item) bool {
		d := CanDelete(it, idx)
		assert.Equal(t, idx.Dependents(it.LinkID).Empty(), d.Allowed, it.LinkID)
		assert.Equal(t, CanRename(it, idx).Allowed, d.Allowed, it.LinkID)
		return true
	})
}

func TestCanRename(t *testing.T) {
	def := definition()
	idx := depindex.Build(def)
	x, _ := def.Find("x")
	d := CanRename(x, idx)
	assert.False(t, d.Allowed)
	assert.Equal(t, ActionRename, d.Action)
	assert.Contains(t, d.Err().Error(), `cannot rename "x"`)
}

func TestCanDeleteTree(t *testing.T) {
	def := definition()
	idx := depindex.Build(def)
	section, _ := def.Find("section")

	// note depends on x, but both go away with the section.
	assert.True(t, CanDelete(section, idx).Allowed)
	assert.True(t, CanDeleteTree(section, idx).Allowed)

	def.Items = append(def.Items, &form.Item{LinkID: "outside", Kind: form.KindString,
		EnableWhen: []form.Condition{{Question: "note", Operator: form.OpExists}}})
	idx = depindex.Build(def)
	section, _ = def.Find("section")
	d := CanDeleteTree(section, idx)
	assert.False(t, d.Allowed)
	assert.Equal(t, []string{"outside"}, names(d.Blockers.EnableWhen))
	assert.Equal(t, "section", d.LinkID)
}

func TestReport(t *testing.T) {
	def := definition()
	idx := depindex.Build(def)
	y, _ := def.Find("y")
	r := NewReport(CanDelete(y, idx), idx)

	require.Len(t, r.Blockers, 2)
	assert.Equal(t, Blocker{Kind: "autofill", LinkID: "x", Label: "Duration", Path: []string{"Visit", "Duration"}}, r.Blockers[0])
	assert.Equal(t, "Visit › Duration", r.Blockers[0].PathString())
	assert.Equal(t, []string{"cap"}, r.Blockers[1].Path)

	out := r.String()
	assert.Contains(t, out, `cannot delete "y"`)
	assert.Contains(t, out, "Visit › Duration")
	assert.True(t, strings.Contains(out, "Dependency"))
}

func TestReport_Allowed(t *testing.T) {
	def := definition()
	idx := depindex.Build(def)
	free, _ := def.Find("free")
	r := NewReport(CanDelete(free, idx), idx)
	assert.Empty(t, r.Blockers)
	assert.Equal(t, `delete "free": allowed`, r.Summary())
}
